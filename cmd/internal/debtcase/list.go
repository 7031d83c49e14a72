package debtcase

import (
	"errors"
	"fmt"
	"strings"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
)

// DefaultPerPage is the page size of case listings.
const DefaultPerPage = 5

var ErrUnknownRole = errors.New("debtcase: unknown role")

// ListEndpoint picks the case listing visible to role.
func ListEndpoint(role session.Role, username string) (string, api.Vars, error) {
	switch role {
	case session.RoleCreditor:
		return creditorCasesEndpoint, api.Vars{"username": username}, nil
	case session.RoleDebtor:
		return debtorCasesEndpoint, api.Vars{"username": username}, nil
	case session.RoleAdmin:
		return casesEndpoint, nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// Group is the cases sharing one status, in input order.
type Group struct {
	Status string
	Cases  []DebtCase
}

// GroupByStatus buckets cases by lower-cased status. Groups appear in the
// order their status is first seen.
func GroupByStatus(cases []DebtCase) []Group {
	var out []Group
	index := make(map[string]int)
	for _, c := range cases {
		key := strings.ToLower(c.Status)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Group{Status: key})
		}
		out[i].Cases = append(out[i].Cases, c)
	}
	return out
}

// TotalPages is ceil(n/perPage). A non-positive perPage uses DefaultPerPage.
func TotalPages(n, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if n <= 0 {
		return 0
	}
	return (n + perPage - 1) / perPage
}

// Paginate returns page (1-based) of cases. Out of range pages are empty.
func Paginate(cases []DebtCase, page, perPage int) []DebtCase {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		return nil
	}
	start := (page - 1) * perPage
	if start >= len(cases) {
		return nil
	}
	end := min(start+perPage, len(cases))
	return cases[start:end]
}

// CreditorIDFor finds the creditor id of username among cases, which is
// needed to address edits and deletes.
func CreditorIDFor(cases []DebtCase, username string) (int, bool) {
	for _, c := range cases {
		if c.Creditor.User.Username == username {
			return c.Creditor.ID, true
		}
	}
	return 0, false
}
