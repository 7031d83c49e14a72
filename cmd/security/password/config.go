package password

// Policy controls password validation.
type Policy struct {
	MinLength int
	MaxLength int
	// RequireClasses demands at least one lowercase letter, one uppercase
	// letter and one digit.
	RequireClasses bool
}

// DefaultPolicy accepts what the server accepts and issues: at least 8
// characters mixing lowercase, uppercase and digits.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      128,
		RequireClasses: true,
	}
}
