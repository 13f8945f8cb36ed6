package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in an emailed login code
const OTPLength = 6

var otpUpperBound = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly random 6-digit numeric code from crypto/rand.
// Leading zeros are kept, so every value in 000000-999999 is possible.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}

	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}
