package access

import (
	"crypto/subtle"
	"errors"

	pkgauth "github.com/BradenHooton/carecheck/pkg/auth"
)

// ErrNoCredentials is returned when neither a password nor a password hash is configured
var ErrNoCredentials = errors.New("admin credentials are not configured")

// CredentialMatcher validates a submitted username/password pair
type CredentialMatcher interface {
	Match(username, password string) bool
}

// StaticCredentials is the locally configured admin credential set.
// When PasswordHash is set it takes precedence over Password.
type StaticCredentials struct {
	username     string
	password     string
	passwordHash string
}

// NewStaticCredentials builds the matcher from configuration
func NewStaticCredentials(username, password, passwordHash string) (*StaticCredentials, error) {
	if username == "" || (password == "" && passwordHash == "") {
		return nil, ErrNoCredentials
	}
	if passwordHash != "" && !pkgauth.IsPasswordHash(passwordHash) {
		return nil, pkgauth.ErrMalformedHash
	}
	return &StaticCredentials{
		username:     username,
		password:     password,
		passwordHash: passwordHash,
	}, nil
}

// Match compares case-sensitively. Both fields are always evaluated so a wrong
// username costs the same as a wrong password.
func (c *StaticCredentials) Match(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1

	var passOK bool
	if c.passwordHash != "" {
		passOK = pkgauth.ComparePassword(c.passwordHash, password) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.password)) == 1
	}

	return userOK && passOK
}
