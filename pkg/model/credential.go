package model

import (
	"errors"
	"fmt"
	"strings"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
var ErrSecretEmpty = errors.New("secret must not be empty")
var ErrSecretInvalidChars = errors.New("secret must not contain line breaks")

// Credential is a provisioned login: a unique username and the secret that
// unlocks it. Credentials are loaded once at startup and never change.
type Credential struct {
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
}

// Validate checks both fields. Lines end at a newline, so a secret must not
// contain one; colons are fine since the secret is the last field.
func (c Credential) Validate() error {
	if err := ValidateUsername(c.Username); err != nil {
		return err
	}
	if c.Secret == "" {
		return ErrSecretEmpty
	}
	if strings.ContainsAny(c.Secret, "\r\n") {
		return ErrSecretInvalidChars
	}
	return nil
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
