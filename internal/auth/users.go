// Package auth checks HTTP basic-auth credentials against a YAML users file.
package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// UsersFile is the on-disk shape:
//
//	users:
//	  - username: alice
//	    password_hash: $2a$10$...
type UsersFile struct {
	Users []UserEntry `yaml:"users"`
}

type UserEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Users maps usernames to bcrypt hashes. The zero value admits nobody.
type Users struct {
	hashes map[string][]byte
}

// LoadUsers reads and validates a users file.
func LoadUsers(path string) (*Users, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return ParseUsers(data)
}

// ParseUsers decodes users file content. Duplicate usernames and entries
// without a bcrypt hash are rejected.
func ParseUsers(data []byte) (*Users, error) {
	var f UsersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	u := &Users{hashes: make(map[string][]byte, len(f.Users))}
	for i, e := range f.Users {
		name := strings.TrimSpace(e.Username)
		if name == "" {
			return nil, fmt.Errorf("users[%d]: empty username", i)
		}
		if _, dup := u.hashes[name]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate username %q", i, name)
		}
		if _, err := bcrypt.Cost([]byte(e.PasswordHash)); err != nil {
			return nil, fmt.Errorf("users[%d]: invalid bcrypt hash for %q: %w", i, name, err)
		}
		u.hashes[name] = []byte(e.PasswordHash)
	}
	return u, nil
}

// Authenticate reports whether password matches the stored hash of username.
func (u *Users) Authenticate(username, password string) bool {
	if u == nil {
		return false
	}
	hash, ok := u.hashes[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Len returns the number of known users.
func (u *Users) Len() int {
	if u == nil {
		return 0
	}
	return len(u.hashes)
}

// HashPassword returns a bcrypt hash suitable for a users file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
