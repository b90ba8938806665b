package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// RevocationList remembers revoked tokens for as long as they
	// could still be valid. It lives in memory, a restart forgets it.
	RevocationList struct {
		cache *bigcache.BigCache
	}
)

func NewRevocationList(ttl time.Duration) (*RevocationList, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 64
	cfg.HardMaxCacheSize = 64
	cfg.CleanWindow = time.Minute
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("session: unable to create revocation list, cause %w", err)
	}
	return &RevocationList{cache: cache}, nil
}

func (r *RevocationList) Add(_ context.Context, id string) error {
	return r.cache.Set(id, []byte{1})
}

func (r *RevocationList) Contains(_ context.Context, id string) (bool, error) {
	buf, err := r.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return len(buf) > 0 && buf[0] == 1, nil
}

func (r *RevocationList) Len() int {
	return r.cache.Len()
}

func (r *RevocationList) Close() error {
	return r.cache.Close()
}
