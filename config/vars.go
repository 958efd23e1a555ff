package config

import (
	"github.com/caarlos0/env/v11"
	apperrors "github.com/target/txalert/internal/errors"
)

// Vars is an immutable snapshot of process configuration variables, taken once at
// startup and passed to whatever needs to read a variable at call time.
type Vars map[string]string

// NewVars converts an os.Environ()-style list into a snapshot.
func NewVars(environ []string) Vars {
	return Vars(env.ToMap(environ))
}

// Lookup returns the value of name and whether it is set. A variable set to the
// empty string counts as set.
func (v Vars) Lookup(name string) (string, bool) {
	val, ok := v[name]
	return val, ok
}

// Get returns the value of name. When name is unset the first default is returned;
// with no default supplied a configuration error naming the variable is returned.
func (v Vars) Get(name string, def ...string) (string, error) {
	if val, ok := v.Lookup(name); ok {
		return val, nil
	}
	if len(def) > 0 {
		return def[0], nil
	}
	return "", apperrors.MissingVariable(name)
}
