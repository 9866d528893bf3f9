package dialogs

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	magicCodeMin = 1000
	magicCodeMax = 9999

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digits       = "0123456789"
)

// newMagicCode returns a uniformly random code in [1000, 9999].
func newMagicCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(magicCodeMax-magicCodeMin+1))
	if err != nil {
		return 0, fmt.Errorf("dialogs: generate code: %w", err)
	}
	return magicCodeMin + int(n.Int64()), nil
}

// newPassword returns six alphanumeric characters followed by two digits.
func newPassword() (string, error) {
	var b strings.Builder
	if err := randomChars(&b, alphanumeric, 6); err != nil {
		return "", err
	}
	if err := randomChars(&b, digits, 2); err != nil {
		return "", err
	}
	return b.String(), nil
}

func randomChars(b *strings.Builder, charset string, n int) error {
	limit := big.NewInt(int64(len(charset)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return fmt.Errorf("dialogs: generate password: %w", err)
		}
		b.WriteByte(charset[idx.Int64()])
	}
	return nil
}

// tokenValid reports whether token is a JWT that has not expired at now.
// The signature is not checked; the token service already issued it.
func tokenValid(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
