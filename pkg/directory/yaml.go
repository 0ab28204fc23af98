package directory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/linechat/pkg/model"
)

// UsersFile is the top-level YAML layout of a users file:
//
//	users:
//	  - username: anant
//	    secret: password123
type UsersFile struct {
	Users []model.Credential `yaml:"users"`
}

// LoadYAML reads a users file and builds a directory from it.
func LoadYAML(path string, opts ...Option) (*Static, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from server config
	if err != nil {
		return nil, fmt.Errorf("directory: read users file: %w", err)
	}
	return ParseYAML(data, opts...)
}

// ParseYAML parses users-file YAML and builds a directory from it.
// Unknown keys are rejected so a typo cannot silently drop a secret.
func ParseYAML(data []byte, opts ...Option) (*Static, error) {
	var f UsersFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("directory: parse users file: %w", err)
	}
	return New(f.Users, opts...)
}
