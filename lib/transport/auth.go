package transport

import (
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator validates the secret a client presents in its handshake.
// Implementations must be safe for concurrent use.
type Authenticator interface {
	Authenticate(secret []byte) bool
}

// BcryptAuthenticator accepts clients whose secret matches a bcrypt hash.
type BcryptAuthenticator struct {
	hash []byte
}

// NewBcryptAuthenticator creates an authenticator from a hash produced by
// HashSecret (or any bcrypt implementation).
func NewBcryptAuthenticator(hash string) (*BcryptAuthenticator, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, oops.Wrapf(err, "invalid bcrypt hash")
	}
	return &BcryptAuthenticator{hash: []byte(hash)}, nil
}

// Authenticate compares secret against the stored hash.
func (a *BcryptAuthenticator) Authenticate(secret []byte) bool {
	if err := bcrypt.CompareHashAndPassword(a.hash, secret); err != nil {
		log.WithFields(logger.Fields{
			"at":     "transport.BcryptAuthenticator.Authenticate",
			"reason": "invalid_secret",
		}).Warn("authentication_failure")
		return false
	}
	log.WithField("at", "transport.BcryptAuthenticator.Authenticate").Debug("authentication_success")
	return true
}

// HashSecret returns the bcrypt hash to store in transport.secret_hash.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", oops.Errorf("secret cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", oops.Wrapf(err, "failed to hash secret")
	}
	return string(hash), nil
}
