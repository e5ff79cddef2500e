package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Qdrant         QdrantConfig         `mapstructure:"qdrant"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Session        SessionConfig        `mapstructure:"session"`
	Timeouts       TimeoutConfig        `mapstructure:"timeouts"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type QdrantConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		EngagementEvents string `mapstructure:"engagement_events"`
	} `mapstructure:"topics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig selects the episode provider backend. Mode "file" loads the
// whole catalog into RAM from Path; mode "postgres" pages through the
// episodes table.
type CatalogConfig struct {
	Mode string `mapstructure:"mode"`
	Path string `mapstructure:"path"`
}

// EmbeddingConfig pins the (algorithm, strategy, dataset) triple that keys
// the vector-store namespace. Changing StrategyVersion orphans every vector
// written under the old value; nothing here migrates them.
type EmbeddingConfig struct {
	AlgorithmVersion string `mapstructure:"algorithm_version"`
	StrategyVersion  string `mapstructure:"strategy_version"`
	DatasetVersion   string `mapstructure:"dataset_version"`
	Model            string `mapstructure:"model"`
	Dimensions       int    `mapstructure:"dimensions"`
}

// RecommendationConfig is the flat, typed form of the pipeline's tunable
// knobs. Validate enforces the invariants that would otherwise only fail
// deep inside a request.
type RecommendationConfig struct {
	StageA    StageAConfig    `mapstructure:"stage_a"`
	StageB    StageBConfig    `mapstructure:"stage_b"`
	Diversity DiversityConfig `mapstructure:"series_diversity"`
	ColdStart ColdStartConfig `mapstructure:"cold_start"`
	QueryTopK int             `mapstructure:"query_top_k"`
}

type StageAConfig struct {
	CredibilityFloor    int `mapstructure:"credibility_floor"`
	CombinedFloor       int `mapstructure:"combined_floor"`
	FreshnessWindowDays int `mapstructure:"freshness_window_days"`
	CandidatePoolSize   int `mapstructure:"candidate_pool_size"`
}

type StageBConfig struct {
	UserVectorLimit       int                `mapstructure:"user_vector_limit"`
	WeightSimilarity      float64            `mapstructure:"weight_similarity"`
	WeightQuality         float64            `mapstructure:"weight_quality"`
	WeightRecency         float64            `mapstructure:"weight_recency"`
	CredibilityMultiplier float64            `mapstructure:"credibility_multiplier"`
	RecencyLambda         float64            `mapstructure:"recency_lambda"`
	EngagementWeights     map[string]float64 `mapstructure:"engagement_weights"`
	CategoryAnchorWeight  float64            `mapstructure:"category_anchor_weight"`
}

type DiversityConfig struct {
	MaxEpisodesPerSeries int     `mapstructure:"max_episodes_per_series"`
	SeriesPenaltyAlpha   float64 `mapstructure:"series_penalty_alpha"`
	NoAdjacentSameSeries bool    `mapstructure:"no_adjacent_same_series"`
}

type ColdStartConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Categories     []string `mapstructure:"categories"`
	MinPerCategory int      `mapstructure:"min_per_category"`
	TopN           int      `mapstructure:"top_n"`
}

type SessionConfig struct {
	TTL                   time.Duration `mapstructure:"ttl"`
	MaxSessions           int           `mapstructure:"max_sessions"`
	FirstPageSize         int           `mapstructure:"first_page_size"`
	MaxPageSize           int           `mapstructure:"max_page_size"`
	MaxStoredEngagements  int           `mapstructure:"max_stored_engagements"`
	MaxExcludedPerQuery   int           `mapstructure:"max_excluded_per_query"`
	EmbeddingFetchBatch   int           `mapstructure:"embedding_fetch_batch"`
	EmbeddingFetchWorkers int           `mapstructure:"embedding_fetch_workers"`
}

type TimeoutConfig struct {
	VectorQuery    time.Duration `mapstructure:"vector_query"`
	EngagementRead time.Duration `mapstructure:"engagement_read"`
	ProviderBatch  time.Duration `mapstructure:"provider_batch"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// weightSumEpsilon is the tolerance on the Stage B weight-sum invariant.
const weightSumEpsilon = 0.01

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Recommendation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommendation config: %w", err)
	}

	if err := config.RateLimit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	return &config, nil
}

// Validate rejects limiter settings that would break the window keying. A
// zero window divides by zero in the middleware, so enabling the limiter
// requires a positive window and limit.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive when rate limiting is enabled (got %s)", c.Window)
	}
	if c.Limit < 1 {
		return fmt.Errorf("rate_limit.limit must be >= 1 when rate limiting is enabled (got %d)", c.Limit)
	}
	return nil
}

// Validate rejects configurations the pipeline must never run with. A
// request served under a bad weight sum silently misranks everything, so
// this fails the whole load instead.
func (c *RecommendationConfig) Validate() error {
	sum := c.StageB.WeightSimilarity + c.StageB.WeightQuality + c.StageB.WeightRecency
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("stage_b weights must sum to 1.0 (got %.4f)", sum)
	}

	if c.StageB.CategoryAnchorWeight < 0 || c.StageB.CategoryAnchorWeight > 1 {
		return fmt.Errorf("category_anchor_weight must be in [0,1] (got %.4f)", c.StageB.CategoryAnchorWeight)
	}

	if c.Diversity.SeriesPenaltyAlpha <= 0 || c.Diversity.SeriesPenaltyAlpha > 1 {
		return fmt.Errorf("series_penalty_alpha must be in (0,1] (got %.4f)", c.Diversity.SeriesPenaltyAlpha)
	}

	if c.Diversity.MaxEpisodesPerSeries < 1 {
		return fmt.Errorf("max_episodes_per_series must be >= 1 (got %d)", c.Diversity.MaxEpisodesPerSeries)
	}

	if c.StageA.CandidatePoolSize < 1 {
		return fmt.Errorf("candidate_pool_size must be >= 1 (got %d)", c.StageA.CandidatePoolSize)
	}

	if c.StageA.FreshnessWindowDays < 1 {
		return fmt.Errorf("freshness_window_days must be >= 1 (got %d)", c.StageA.FreshnessWindowDays)
	}

	if c.StageB.UserVectorLimit < 1 {
		return fmt.Errorf("user_vector_limit must be >= 1 (got %d)", c.StageB.UserVectorLimit)
	}

	if c.StageB.RecencyLambda < 0 {
		return fmt.Errorf("recency_lambda must be >= 0 (got %.4f)", c.StageB.RecencyLambda)
	}

	if c.QueryTopK < 1 {
		return fmt.Errorf("query_top_k must be >= 1 (got %d)", c.QueryTopK)
	}

	if c.ColdStart.Enabled {
		if len(c.ColdStart.Categories) == 0 {
			return fmt.Errorf("cold_start.categories must be non-empty when cold start diversity is enabled")
		}
		if c.ColdStart.MinPerCategory < 1 {
			return fmt.Errorf("cold_start.min_per_category must be >= 1 (got %d)", c.ColdStart.MinPerCategory)
		}
	}

	return nil
}

// EngagementWeight returns the configured weight for an engagement type,
// defaulting to 1.0 for types outside the configured map.
func (c *StageBConfig) EngagementWeight(engagementType string) float64 {
	if w, ok := c.EngagementWeights[engagementType]; ok {
		return w
	}
	return 1.0
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Catalog defaults
	viper.SetDefault("catalog.mode", "file")
	viper.SetDefault("catalog.path", "./data/episodes.json")

	// Embedding defaults
	viper.SetDefault("embedding.algorithm_version", "v2")
	viper.SetDefault("embedding.strategy_version", "title-insight-1")
	viper.SetDefault("embedding.dataset_version", "1")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)

	// Stage A defaults
	viper.SetDefault("recommendation.stage_a.credibility_floor", 2)
	viper.SetDefault("recommendation.stage_a.combined_floor", 5)
	viper.SetDefault("recommendation.stage_a.freshness_window_days", 90)
	viper.SetDefault("recommendation.stage_a.candidate_pool_size", 150)

	// Stage B defaults
	viper.SetDefault("recommendation.stage_b.user_vector_limit", 10)
	viper.SetDefault("recommendation.stage_b.weight_similarity", 0.55)
	viper.SetDefault("recommendation.stage_b.weight_quality", 0.30)
	viper.SetDefault("recommendation.stage_b.weight_recency", 0.15)
	viper.SetDefault("recommendation.stage_b.credibility_multiplier", 1.5)
	viper.SetDefault("recommendation.stage_b.recency_lambda", 0.03)
	viper.SetDefault("recommendation.stage_b.engagement_weights", map[string]float64{
		"bookmark": 2.0,
		"click":    1.0,
	})
	viper.SetDefault("recommendation.stage_b.category_anchor_weight", 0.15)

	// Series diversity defaults
	viper.SetDefault("recommendation.series_diversity.max_episodes_per_series", 2)
	viper.SetDefault("recommendation.series_diversity.series_penalty_alpha", 0.7)
	viper.SetDefault("recommendation.series_diversity.no_adjacent_same_series", true)

	// Cold start defaults
	viper.SetDefault("recommendation.cold_start.enabled", false)
	viper.SetDefault("recommendation.cold_start.min_per_category", 2)
	viper.SetDefault("recommendation.cold_start.top_n", 10)

	viper.SetDefault("recommendation.query_top_k", 250)

	// Session defaults
	viper.SetDefault("session.ttl", "24h")
	viper.SetDefault("session.max_sessions", 10000)
	viper.SetDefault("session.first_page_size", 10)
	viper.SetDefault("session.max_page_size", 20)
	viper.SetDefault("session.max_stored_engagements", 500)
	viper.SetDefault("session.max_excluded_per_query", 10000)
	viper.SetDefault("session.embedding_fetch_batch", 100)
	viper.SetDefault("session.embedding_fetch_workers", 8)

	// Timeout defaults
	viper.SetDefault("timeouts.vector_query", "5s")
	viper.SetDefault("timeouts.engagement_read", "2s")
	viper.SetDefault("timeouts.provider_batch", "5s")

	// Rate limit defaults
	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.limit", 300)
	viper.SetDefault("rate_limit.window", "1m")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})

	// Kafka defaults
	viper.SetDefault("kafka.topics.engagement_events", "engagement-events")
}
