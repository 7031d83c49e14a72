package v1

import (
	"fmt"
	"strings"
)

const (
	// userPrefix marks per-user destinations resolved by the broker.
	userPrefix = "/user/"

	// EnrichedDebtCases receives a debt case after the backend enriched it
	// (company lookup, phone normalization).
	EnrichedDebtCases = "/topic/enriched-debt-cases"
)

// UserTopic returns the per-user destination for topic.
func UserTopic(username, topic string) string {
	return userPrefix + username + topic
}

// EnrichedDebtCasesTopic is the per-creditor enrichment channel.
func EnrichedDebtCasesTopic(username string) string {
	return UserTopic(username, EnrichedDebtCases)
}

// SplitUserTopic returns the username and topic of a per-user destination.
func SplitUserTopic(dest string) (username, topic string, err error) {
	if !strings.HasPrefix(dest, userPrefix) {
		return "", "", fmt.Errorf("not a user destination: %q", dest)
	}
	rest := strings.TrimPrefix(dest, userPrefix)
	i := strings.Index(rest, "/")
	if i <= 0 {
		return "", "", fmt.Errorf("malformed user destination: %q", dest)
	}
	return rest[:i], rest[i:], nil
}
