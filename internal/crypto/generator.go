package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	// passwordAlphabet omits look-alike characters (0/O, 1/l/I) since generated
	// passwords are read off a terminal by an operator.
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789-_.!@#%+="

	MinGeneratedLength = 12
	MaxGeneratedLength = 128
)

var ErrGeneratedLength = errors.New("generated password length must be between 12 and 128")

// GeneratePassword returns a random password of the given length drawn
// uniformly from passwordAlphabet using crypto/rand.
func GeneratePassword(length int) (string, error) {
	if length < MinGeneratedLength || length > MaxGeneratedLength {
		return "", ErrGeneratedLength
	}

	size := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
