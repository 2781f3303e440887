// Package secrets resolves indirect secret references from desired config.
// Config files never carry literal secrets, only the names of environment
// variables holding them. Resolution happens when a Create/Update payload is
// built, never during diffing: the live value cannot be read back from the
// backend, so comparing would report drift forever.
package secrets

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MissingError means a referenced environment variable is unset.
type MissingError struct {
	Var string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("secret environment variable %q is not set", e.Var)
}

// Resolver looks up secret values by environment variable name.
type Resolver struct {
	lookup func(string) (string, bool)
}

// NewResolver resolves against the process environment.
func NewResolver() *Resolver {
	return &Resolver{lookup: os.LookupEnv}
}

// NewStaticResolver resolves against a fixed map. Test helper.
func NewStaticResolver(values map[string]string) *Resolver {
	return &Resolver{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

// LoadDotenv merges a .env file into the process environment if the file
// exists. Already-set variables win.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Resolve returns the value of the named variable or a MissingError.
func (r *Resolver) Resolve(envVar string) (string, error) {
	if envVar == "" {
		return "", &MissingError{Var: envVar}
	}
	val, ok := r.lookup(envVar)
	if !ok {
		return "", &MissingError{Var: envVar}
	}
	return val, nil
}
