package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type MongoCfg struct {
	URI                string
	ManifestDB         string
	ReportDB           string
	ManifestCollection string
	ReportCollection   string
	FeaturesCollection string
	MetadataCollection string
	ConnectTimeout     time.Duration
}

type TilesCfg struct {
	APIKey         string
	StyleURL       string
	TilesURL       string
	CDPLayerIDs    []string
	FetchWorkers   int
	FetchTimeout   time.Duration
	FetchRetries   int
	StyleTimeout   time.Duration
	CacheEnabled   bool
	CacheTTL       time.Duration
	LayerCacheSize int
	LayerCacheTTL  time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr                string
	LogLevel            string
	LogConsole          bool
	LogSampleN          int
	RedisAddr           string
	H3Res               int
	SubgroupConcurrency int
	IsochroneEnabled    bool
	Mongo               MongoCfg
	Tiles               TilesCfg
	Events              EventsCfg
	Metrics             MetricsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 9)
	if res < 0 || res > 15 {
		res = 9
	}

	return Config{
		Addr:                getenv("ADDR", ":8090"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogConsole:          getbool("LOG_CONSOLE", false),
		LogSampleN:          getint("LOG_SAMPLE_N", 0),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		H3Res:               res,
		SubgroupConcurrency: getint("SUBGROUP_CONCURRENCY", 8),
		IsochroneEnabled:    getbool("ISOCHRONE_FILTERING_ENABLED", false),
		Mongo: MongoCfg{
			URI:                getenv("MONGO_DB_URI", "mongodb://localhost:27017"),
			ManifestDB:         getenv("TL_MANIFEST_DB_NAME", "manifest"),
			ReportDB:           getenv("TL_PROPSCOPE_DB_NAME", "propscope"),
			ManifestCollection: getenv("PROPSCOPE_MANIFEST_COLLECTION_NAME", "propscope_manifest"),
			ReportCollection:   getenv("PROPSCOPE_COLLECTION_NAME", "propscopes"),
			FeaturesCollection: getenv("PROPSCOPE_FEATURES_COLLECTION_NAME", "propscope_spatial_features"),
			MetadataCollection: getenv("PROPSCOPE_META_COLLECTION_NAME", "propscope_meta"),
			ConnectTimeout:     getduration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Tiles: TilesCfg{
			APIKey:         os.Getenv("MAPTILER_API_KEY"),
			StyleURL:       getenv("MAPTILER_STYLE_URL", "https://api.maptiler.com/maps/streets-v2/style.json"),
			TilesURL:       getenv("MAPTILER_TILES_URL", "https://api.maptiler.com/tiles"),
			CDPLayerIDs:    split(getenv("CDP_LAYER_IDS", "Proposed-CDP-Map")),
			FetchWorkers:   getint("TILE_FETCH_WORKERS", 8),
			FetchTimeout:   getduration("TILE_FETCH_TIMEOUT", 10*time.Second),
			FetchRetries:   getint("TILE_FETCH_RETRIES", 2),
			StyleTimeout:   getduration("STYLE_FETCH_TIMEOUT", 10*time.Second),
			CacheEnabled:   getbool("TILE_CACHE_ENABLED", false),
			CacheTTL:       getduration("TILE_CACHE_TTL", 24*time.Hour),
			LayerCacheSize: getint("LAYER_META_CACHE_SIZE", 256),
			LayerCacheTTL:  getduration("LAYER_META_CACHE_TTL", time.Hour),
		},
		Events: EventsCfg{
			Enabled: getbool("REPORT_EVENTS_ENABLED", false),
			Brokers: split(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("REPORT_EVENTS_TOPIC", "propscope-report-completed"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// split parses a comma separated list, dropping blanks
func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
