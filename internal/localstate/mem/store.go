// Package localstatemem keeps the local state in process memory. Nothing survives a restart.
package localstatemem

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/course-client/internal/localstate"
)

type Store struct {
	items *cache.Cache
}

var _ = localstate.Store(&Store{})

func NewStore() *Store {
	return &Store{
		items: cache.New(cache.NoExpiration, 0),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return "", localstate.ErrNotFound
	}
	value, _ := v.(string)
	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.items.SetDefault(key, value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}
