package api

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Vars holds path template substitutions. Values are strings, integers,
// floats, or anything implementing fmt.Stringer. A nil value counts as missing.
type Vars map[string]any

var placeholderRe = regexp.MustCompile(`\{([^{}/]+)\}`)

// BuildURL substitutes every {key} in template that has a value in vars and
// joins the result onto base. Keys without a placeholder are ignored.
// Values are path-escaped.
//
// A placeholder left without a value fails with ErrUnresolvedPlaceholder.
func BuildURL(base, template string, vars Vars) (string, error) {
	path := template
	for key, v := range vars {
		if v == nil {
			continue
		}
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(stringify(v)))
	}

	if m := placeholderRe.FindStringSubmatch(path); m != nil {
		return "", fmt.Errorf("%w: %s in %q", ErrUnresolvedPlaceholder, m[1], template)
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// varsKey is a stable identity for a set of vars, used to decide when a
// reader must refetch.
func varsKey(endpoint string, vars Vars) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		if vars[k] != nil {
			b.WriteString(stringify(vars[k]))
		}
	}
	return b.String()
}
