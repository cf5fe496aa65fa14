package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/fungame/internal/adapters/secrets/env"
	filestore "github.com/bnema/fungame/internal/adapters/secrets/file"
	"github.com/bnema/fungame/internal/ports"
)

// Store tries each backend in order. Reads return the first hit; writes land in
// the first backend that accepts them.
type Store struct {
	stores []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var errNoStores = errors.New("secret store chain is empty")

func NewStore(stores ...ports.SecretStore) (*Store, error) {
	filtered := make([]ports.SecretStore, 0, len(stores))
	for _, store := range stores {
		if store != nil {
			filtered = append(filtered, store)
		}
	}
	if len(filtered) == 0 {
		return nil, errNoStores
	}

	return &Store{stores: filtered}, nil
}

// NewEnvFirstWithFileFallback reads FUNGAME_* variables before the secrets file.
func NewEnvFirstWithFileFallback(secretsPath string) (*Store, error) {
	return NewStore(envstore.NewStore(""), filestore.NewStore(secretsPath))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, store := range s.stores {
		value, err := store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		errs = append(errs, err)
	}

	return "", fmt.Errorf("get secret %q: %w", key, errors.Join(errs...))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for _, store := range s.stores {
		err := store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if shouldStop(err) {
			return err
		}
		errs = append(errs, err)
	}

	return fmt.Errorf("put secret %q: %w", key, errors.Join(errs...))
}

// Delete removes the key from every writable backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	deleted := false
	for _, store := range s.stores {
		err := store.Delete(ctx, key)
		if err == nil {
			deleted = true
			continue
		}
		if shouldStop(err) {
			return err
		}
		if errors.Is(err, envstore.ErrReadOnly) {
			continue
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete secret %q: %w", key, errors.Join(errs...))
	}
	if !deleted {
		return fmt.Errorf("delete secret %q: %w", key, envstore.ErrReadOnly)
	}

	return nil
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
