package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
)

// ErrReadOnly is returned by Put and Delete. Writes belong to the next store in a chain.
var ErrReadOnly = errors.New("environment secret store is read-only")

const defaultPrefix = "FUNGAME_"

// Store resolves "gemini/api_key" from FUNGAME_GEMINI_API_KEY.
type Store struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{prefix: prefix, lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := s.VariableFor(key)
	if err != nil {
		return "", err
	}
	value, ok := s.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("env secret %s: %w", name, domain.ErrSecretNotFound)
	}

	return value, nil
}

func (s *Store) Put(context.Context, string, string) error {
	return ErrReadOnly
}

func (s *Store) Delete(context.Context, string) error {
	return ErrReadOnly
}

// VariableFor maps a secret key to its environment variable name.
func (s *Store) VariableFor(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}

	var b strings.Builder
	b.WriteString(s.prefix)
	for _, r := range strings.ToUpper(trimmed) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String(), nil
}
