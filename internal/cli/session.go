package cli

import (
	"time"

	"github.com/ppiankov/lineage/internal/cache"
	"github.com/ppiankov/lineage/internal/model"
	"github.com/ppiankov/lineage/internal/wikidata"
)

// newStore builds the entity/lookup cache from configuration. A nil store
// disables caching.
func newStore(cfg model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.MemoryOnly || cfg.Cache.Dir == "" {
		return cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
	}
	return cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
}

func newSession(cfg model.Config) (*wikidata.Session, error) {
	return wikidata.NewSession(&cfg, newStore(cfg))
}
