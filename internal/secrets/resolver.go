package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	secretRefPrefix = "$SECRET:"
	envRefPrefix    = "$ENV:"
)

// Resolver turns bearer-token references into token values. Plain values
// pass through unchanged.
//
//	$SECRET:name  read from the encrypted store
//	$ENV:NAME     read from the process environment
type Resolver struct {
	store     *Store
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver. store may be nil, in which case $SECRET:
// references fail to resolve.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store, lookupEnv: os.LookupEnv}
}

// Resolve resolves a single value.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	switch {
	case strings.HasPrefix(value, secretRefPrefix):
		name := strings.TrimPrefix(value, secretRefPrefix)
		if name == "" {
			return "", fmt.Errorf("empty credential name in reference")
		}
		if r == nil || r.store == nil {
			return "", fmt.Errorf("credential %q: no credential store configured", name)
		}
		v, err := r.store.Get(ctx, name)
		if err != nil {
			return "", fmt.Errorf("get credential %q: %w", name, err)
		}
		return string(v), nil

	case strings.HasPrefix(value, envRefPrefix):
		name := strings.TrimPrefix(value, envRefPrefix)
		if name == "" {
			return "", fmt.Errorf("empty variable name in reference")
		}
		lookup := os.LookupEnv
		if r != nil && r.lookupEnv != nil {
			lookup = r.lookupEnv
		}
		v, ok := lookup(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	}
	return value, nil
}

// IsReference reports whether value is a $SECRET: or $ENV: reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, secretRefPrefix) || strings.HasPrefix(value, envRefPrefix)
}
