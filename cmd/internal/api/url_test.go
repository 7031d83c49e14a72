package api

import (
	"errors"
	"testing"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()

	const base = "http://localhost:8080/api"

	cases := []struct {
		name     string
		template string
		vars     Vars
		want     string
	}{
		{"username", "users/{username}", Vars{"username": "alice"}, "http://localhost:8080/api/users/alice"},
		{"numeric", "debt/cases/{id}", Vars{"id": 42}, "http://localhost:8080/api/debt/cases/42"},
		{"two placeholders", "debt/cases/{id}/creditors/{creditorId}", Vars{"id": 7, "creditorId": int64(3)}, "http://localhost:8080/api/debt/cases/7/creditors/3"},
		{"extra keys ignored", "debt/cases", Vars{"unused": "x"}, "http://localhost:8080/api/debt/cases"},
		{"repeated placeholder", "a/{x}/b/{x}", Vars{"x": "y"}, "http://localhost:8080/api/a/y/b/y"},
		{"float", "amounts/{v}", Vars{"v": 12.5}, "http://localhost:8080/api/amounts/12.5"},
		{"escaped", "users/{username}", Vars{"username": "a b"}, "http://localhost:8080/api/users/a%20b"},
		{"no vars", "debtcase/types", nil, "http://localhost:8080/api/debtcase/types"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildURL(base, tc.template, tc.vars)
			if err != nil {
				t.Fatalf("BuildURL: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestBuildURL_TrailingSlashBase(t *testing.T) {
	t.Parallel()

	got, err := BuildURL("http://h/api/", "/users/{u}", Vars{"u": "bob"})
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}
	if got != "http://h/api/users/bob" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildURL_UnresolvedPlaceholder(t *testing.T) {
	t.Parallel()

	for _, vars := range []Vars{nil, {"other": 1}, {"username": nil}} {
		_, err := BuildURL("http://h/api", "users/{username}", vars)
		if !errors.Is(err, ErrUnresolvedPlaceholder) {
			t.Fatalf("vars=%v: expected ErrUnresolvedPlaceholder, got %v", vars, err)
		}
	}
}

func TestVarsKeyStable(t *testing.T) {
	t.Parallel()

	a := varsKey("e", Vars{"a": 1, "b": "x"})
	b := varsKey("e", Vars{"b": "x", "a": 1})
	if a != b {
		t.Fatalf("key depends on map order: %q vs %q", a, b)
	}
	if a == varsKey("e", Vars{"a": 2, "b": "x"}) {
		t.Fatalf("key ignores values")
	}
}
