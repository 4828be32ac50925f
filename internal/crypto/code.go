package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const digitChars = "0123456789"

// CodeLength is the number of digits in a password reset code.
const CodeLength = 6

var ErrCodeLength = errors.New("code length must be between 4 and 12")

// GenerateCode returns a uniformly random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	if length < 4 || length > 12 {
		return "", ErrCodeLength
	}

	max := big.NewInt(int64(len(digitChars)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = digitChars[n.Int64()]
	}

	return string(code), nil
}
