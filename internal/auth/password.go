package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for password hashing. 12 is slow enough to
// make offline cracking expensive while keeping interactive logins under a
// few hundred milliseconds on modest hardware. Hashing cost is exactly why
// the login rate limiter exists: verification is attacker-triggerable CPU
// work.
const bcryptCost = 12

// bcryptMaxInput is bcrypt's hard input limit. Longer passwords are
// truncated before hashing and verification so the two operations agree --
// the password validator allows up to 100 characters, which can exceed 72
// bytes.
const bcryptMaxInput = 72

// HashPassword creates a bcrypt hash of the given password. The output is
// the standard self-describing $2a$... format embedding cost and salt, so
// verification needs no separately stored parameters.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
// It returns false -- never an error -- on a malformed hash or any internal
// failure. Callers treat verification as a pure boolean; the comparison
// inside bcrypt is constant-time.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncateForBcrypt(password)) == nil
}

// truncateForBcrypt caps the input at bcrypt's 72-byte limit.
func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxInput {
		b = b[:bcryptMaxInput]
	}
	return b
}
