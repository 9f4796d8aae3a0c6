package config

import "time"

// RedisConfig contains Redis configuration.
// Redis is optional; when URI is empty an in-process cache is used instead.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:""`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// Enabled reports whether a Redis connection should be attempted.
func (r RedisConfig) Enabled() bool {
	return r.URI != "" || (r.UseSentinel && len(r.SentinelNodes) > 0) || (r.UseCluster && len(r.ClusterNodes) > 0)
}

// CacheConfig contains identity cache configuration.
type CacheConfig struct {
	// IdentityTTL bounds how long a resolved identity is trusted before the
	// backend user endpoint is consulted again.
	IdentityTTL time.Duration `env:"CACHE_IDENTITY_TTL" envDefault:"5m"`

	// LocalCapacity is the entry limit of the in-process cache.
	LocalCapacity int `env:"CACHE_LOCAL_CAPACITY" envDefault:"1024"`
}

// Sanitize applies guardrails to cache values.
func (c *CacheConfig) Sanitize() {
	if c.IdentityTTL < 0 {
		c.IdentityTTL = 0
	}
	if c.LocalCapacity <= 0 {
		c.LocalCapacity = 1024
	}
}
