package account

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCredentialNotFound indicates no password is present for an account.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialKey returns the environment variable name holding an
// account's password: MAILWARD_ACCOUNT_<ID>_PASSWORD, where <ID> is
// the account identifier uppercased with every non-alphanumeric
// character replaced by an underscore.
func CredentialKey(accountID string) string {
	var b strings.Builder
	b.Grow(len(accountID))
	for _, r := range accountID {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return "MAILWARD_ACCOUNT_" + b.String() + "_PASSWORD"
}

// Credentials resolves account passwords.
type Credentials interface {
	Password(accountID string) (string, error)
}

// EnvCredentials reads passwords from the process environment.
type EnvCredentials struct{}

// Password returns the password for an account, or a wrapped
// ErrCredentialNotFound naming the variable that was checked.
func (EnvCredentials) Password(accountID string) (string, error) {
	key := CredentialKey(accountID)
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return "", fmt.Errorf("%w: set %s", ErrCredentialNotFound, key)
	}
	return val, nil
}
