package password

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// GeneratedLength is the length of passwords issued for new accounts.
const GeneratedLength = 12

var alphabet = func() string {
	var b strings.Builder
	for _, c := range classes {
		b.WriteString(c.chars)
	}
	return b.String()
}()

// Generate returns a random alphanumeric password of length characters with
// at least one character from every class.
func Generate(length int) (string, error) {
	if length < len(classes) {
		return "", ErrInvalidLength
	}

	out := make([]byte, length)
	for i, c := range classes {
		ch, err := pick(c.chars)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}
	for i := len(classes); i < length; i++ {
		ch, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}

	// Fisher-Yates, so the guaranteed characters do not sit up front.
	for i := length - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(chars string) (byte, error) {
	i, err := randIndex(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
