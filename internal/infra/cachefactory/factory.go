package cachefactory

import (
	"strings"
	"time"

	"github.com/authrim/authrim/internal/cache"
	cmem "github.com/authrim/authrim/internal/cache/memory"
	credis "github.com/authrim/authrim/internal/cache/redis"
)

type Config struct {
	Kind  string
	Redis struct {
		Addr   string
		DB     int
		Prefix string
	}
	Memory struct{ DefaultTTL string }
}

func Open(cfg Config) (cache.Cache, error) {
	switch strings.ToLower(cfg.Kind) {
	case "redis":
		return credis.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Prefix), nil
	default:
		d, _ := time.ParseDuration(cfg.Memory.DefaultTTL)
		if d == 0 {
			d = 2 * time.Minute
		}
		return cmem.New(d), nil
	}
}
