package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	storeDirMode   = 0o700
	secretFileMode = 0o600
	tempPattern    = ".secrets-*.toml.tmp"
)

// Store keeps all secrets in one TOML table readable only by the owner.
type Store struct {
	path string
	mu   sync.RWMutex
}

type secretsFile struct {
	Secrets map[string]string `toml:"secrets"`
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	file.Secrets[key] = value

	return s.write(file)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return "", err
	}
	value, ok := file.Secrets[key]
	if !ok {
		return "", fmt.Errorf("file secret %q: %w", key, domain.ErrSecretNotFound)
	}

	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := file.Secrets[key]; !ok {
		return nil
	}
	delete(file.Secrets, key)

	return s.write(file)
}

func (s *Store) read() (secretsFile, error) {
	file := secretsFile{Secrets: map[string]string{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return file, nil
		}
		return secretsFile{}, fmt.Errorf("read secrets file: %w", err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return secretsFile{}, fmt.Errorf("decode secrets file: %w", err)
	}
	if file.Secrets == nil {
		file.Secrets = map[string]string{}
	}

	return file, nil
}

func (s *Store) write(file secretsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), storeDirMode); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode secrets file: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(s.path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp secrets file: %w", err)
	}
	tempName := temp.Name()
	defer func() { _ = os.Remove(tempName) }()

	if err := temp.Chmod(secretFileMode); err != nil {
		_ = temp.Close()
		return fmt.Errorf("chmod temp secrets file: %w", err)
	}
	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return fmt.Errorf("write temp secrets file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close temp secrets file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace secrets file: %w", err)
	}

	return nil
}

func normalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}
	if strings.ContainsAny(trimmed, "\n\r") {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	return trimmed, nil
}
