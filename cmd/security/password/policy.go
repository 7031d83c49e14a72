package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charClass is one set of characters a password must draw from.
type charClass struct {
	name  string
	chars string
}

var classes = []charClass{
	{name: "a lowercase letter", chars: "abcdefghijklmnopqrstuvwxyz"},
	{name: "an uppercase letter", chars: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"},
	{name: "a digit", chars: "0123456789"},
}

// Validate checks password against p. Length counts runes.
func (p Policy) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return ErrPasswordTooShort
	}
	if n > p.MaxLength {
		return ErrPasswordTooLong
	}
	if !p.RequireClasses {
		return nil
	}

	var missing []string
	for _, c := range classes {
		if !strings.ContainsAny(password, c.chars) {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", ErrWeakPassword, strings.Join(missing, " and "))
	}
	return nil
}
