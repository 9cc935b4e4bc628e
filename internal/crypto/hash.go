package crypto

import (
	"golang.org/x/crypto/bcrypt"

	"api-gateway/internal/common/errors"
)

// HashSecret bcrypt-hashes a client secret.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.ValidationError("secret cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.InternalError("failed to hash secret", err)
	}
	return string(hash), nil
}

// CompareSecret reports whether secret matches hash.
func CompareSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
