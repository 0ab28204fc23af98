// Package directory holds the static credential directory that gates logins.
//
// The directory is built once at startup from a fixed list of credentials
// and is read-only afterwards, so it is safe for concurrent use without
// locking. Secrets are never kept in memory: each is replaced by an Argon2id
// digest under a per-user random salt.
package directory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/NicolasHaas/linechat/pkg/crypto"
	"github.com/NicolasHaas/linechat/pkg/model"
)

var (
	ErrNoCredentials = errors.New("directory: no credentials provisioned")
	ErrDuplicateUser = errors.New("directory: duplicate username")
)

// Authenticator checks a username/secret pair.
type Authenticator interface {
	Authenticate(username, secret string) bool
}

type entry struct {
	salt   []byte
	digest []byte
}

// Static is an immutable in-memory Authenticator.
type Static struct {
	hasher  *crypto.Hasher
	entries map[string]entry
	names   []string

	// decoy is hashed against for unknown usernames so a miss costs the same
	// as a wrong secret.
	decoy entry
}

// Option configures a Static directory.
type Option func(*options)

type options struct {
	params crypto.Params
}

// WithParams overrides the Argon2id cost parameters.
func WithParams(p crypto.Params) Option {
	return func(o *options) { o.params = p }
}

// DefaultCredentials returns the demo accounts provisioned when no users
// file is configured.
func DefaultCredentials() []model.Credential {
	return []model.Credential{
		{Username: "anant", Secret: "password123"},
		{Username: "rohan", Secret: "password123"},
		{Username: "aman", Secret: "password123"},
	}
}

// Default builds a directory holding DefaultCredentials.
func Default(opts ...Option) (*Static, error) {
	return New(DefaultCredentials(), opts...)
}

// New validates creds and builds a directory from them.
func New(creds []model.Credential, opts ...Option) (*Static, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	d := &Static{
		hasher:  crypto.NewHasher(o.params),
		entries: make(map[string]entry, len(creds)),
		names:   make([]string, 0, len(creds)),
	}
	for i, c := range creds {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("directory: credential %d (%q): %w", i, c.Username, err)
		}
		if _, dup := d.entries[c.Username]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUser, c.Username)
		}
		e, err := d.seal(c.Secret)
		if err != nil {
			return nil, err
		}
		d.entries[c.Username] = e
		d.names = append(d.names, c.Username)
	}
	sort.Strings(d.names)

	decoy, err := d.seal("decoy")
	if err != nil {
		return nil, err
	}
	d.decoy = decoy
	return d, nil
}

func (d *Static) seal(secret string) (entry, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return entry{}, fmt.Errorf("directory: %w", err)
	}
	return entry{salt: salt, digest: d.hasher.Hash(secret, salt)}, nil
}

// Authenticate reports whether username exists and secret matches it exactly.
func (d *Static) Authenticate(username, secret string) bool {
	e, ok := d.entries[username]
	if !ok {
		d.hasher.Verify(secret, d.decoy.salt, d.decoy.digest)
		return false
	}
	return d.hasher.Verify(secret, e.salt, e.digest)
}

// Usernames returns the provisioned usernames in sorted order.
func (d *Static) Usernames() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of provisioned users.
func (d *Static) Len() int {
	return len(d.names)
}

// Compile-time check: *Static implements Authenticator.
var _ Authenticator = (*Static)(nil)
