package medley

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// EngineConfig holds the engine's own tunables: the knobs that trade
// performance for resource use without changing correctness. It never
// loads directive text, field mappings, or anything dataset-specific —
// that job-configuration surface is an external, caller-owned concern
// the core engine never touches.
type EngineConfig struct {
	// ClusterLocalThreshold is the edge count (k-1 edges for each
	// fingerprint shared by k ids) at or above which BuildClusters switches
	// from the in-memory disjoint-set path to the sorted-edge
	// chain-reduction path.
	ClusterLocalThreshold int `mapstructure:"cluster_local_threshold"`

	// FanoutLimit is the soft per-key fanout ceiling past which a lookup
	// records an IndexLookupOverflow warning instead of failing.
	FanoutLimit int `mapstructure:"fanout_limit"`

	// QueryCacheSize is the capacity of QueryEngine's LRU lookup cache, one
	// cache shared by all four indexes. Zero disables caching.
	QueryCacheSize int `mapstructure:"query_cache_size"`

	// Workers is the fixed worker-pool size used for C4 batch hashing.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int `mapstructure:"workers"`
}

// LoadEngineConfig reads engine tunables from any sources viper has been
// configured with (config file, environment, flags) layered over
// defaults, and returns the resolved EngineConfig.
func LoadEngineConfig() (EngineConfig, error) {
	setEngineConfigDefaults()

	cfg := EngineConfig{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("medley: unable to decode engine config: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}

func setEngineConfigDefaults() {
	viper.SetDefault("cluster_local_threshold", 1_000_000)
	viper.SetDefault("fanout_limit", 10_000)
	viper.SetDefault("query_cache_size", 4096)
	viper.SetDefault("workers", 0)
}
