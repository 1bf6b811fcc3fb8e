package localstatevalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/course-client/internal/localstate"
)

const objectType = "localstate"

// Store keeps the local state in ValKey under <prefix>:localstate:<key>.
type Store struct {
	valkey valkey.Client
	prefix string
}

var _ = localstate.Store(&Store{})

func NewStore(valkeyClient valkey.Client, prefix string) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(key)).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return "", localstate.ErrNotFound
		}

		return "", fmt.Errorf("executing get command: %w", err)
	}

	var value string
	if err := s.decode(bytes, &value); err != nil {
		return "", fmt.Errorf("decoding value: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	bytes, err := s.encode(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	if err := s.valkey.Do(ctx, s.valkey.B().Set().Key(s.key(key)).Value(valkey.BinaryString(bytes)).Build()).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s:%s", objectType, key)
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, key)
}

func (s *Store) encode(v string) ([]byte, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}

	return bytes, nil
}

func (s *Store) decode(data []byte, into *string) error {
	if err := json.Unmarshal(data, into); err != nil {
		return errors.Join(localstate.ErrCorrupted, fmt.Errorf("unmarshaling json: %w", err))
	}

	return nil
}
