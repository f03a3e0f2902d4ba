package cache

import (
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/spf13/viper"
	"github.com/stepflow-io/stepflow/internal/constants"
)

// simple cache implemented using ristretto cache library
type InMemoryCache struct {
	cache *ristretto.Cache
}

var inMemoryCache *InMemoryCache

// InMemoryInitialize sets up the process-wide cache used to memoize
// materializer source hashes. Sizing comes from viper when no config is
// given.
func InMemoryInitialize(config *ristretto.Config) *InMemoryCache {
	if config == nil {
		numCounters := viper.GetInt64(constants.ArgMaterializerCacheNumCounter)
		if numCounters == 0 {
			numCounters = 100000
		}
		maxCost := viper.GetInt64(constants.ArgMaterializerCacheMaxCost)
		if maxCost == 0 {
			maxCost = 67108864
		}
		config = &ristretto.Config{
			NumCounters: numCounters, // number of keys to track frequency
			MaxCost:     maxCost,     // maximum cost of cache
			BufferItems: 64,          // number of keys per Get buffer
		}
	}
	cache, err := ristretto.NewCache(config)
	if err != nil {
		slog.Error("error initializing in-memory cache", "error", err)
		os.Exit(1)
	}

	inMemoryCache = &InMemoryCache{cache}
	return inMemoryCache
}

func GetCache() *InMemoryCache {
	if inMemoryCache == nil {
		return InMemoryInitialize(nil)
	}
	return inMemoryCache
}

func (cache *InMemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) bool {
	res := cache.cache.SetWithTTL(key, value, 1, ttl)

	// wait for value to pass through buffers
	cache.cache.Wait()
	return res
}

func (cache *InMemoryCache) Set(key string, value interface{}) bool {
	res := cache.cache.Set(key, value, 1)
	cache.cache.Wait()
	return res
}

func (cache *InMemoryCache) Get(key string) (interface{}, bool) {
	return cache.cache.Get(key)
}

func (cache *InMemoryCache) Delete(key string) {
	cache.cache.Del(key)
}
