package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Forecast    ForecastConfig `mapstructure:"forecast"`
	Spatial     SpatialConfig  `mapstructure:"spatial"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Timeouts    TimeoutConfig  `mapstructure:"timeouts"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ForecastConfig holds the model parameters shared by the predictors.
type ForecastConfig struct {
	// DecompositionLevels is the number of detail components produced by
	// the multiresolution decomposer.
	DecompositionLevels int `mapstructure:"decomposition_levels"`
	// SeasonalPeriod is the seasonal cycle length in sampling periods,
	// configured per basin (e.g. 365 for daily data with an annual cycle).
	SeasonalPeriod int `mapstructure:"seasonal_period"`
	// MaxHorizon bounds the requested forecast horizon.
	MaxHorizon int `mapstructure:"max_horizon"`
	// ConfidenceLevel for forecast bounds, e.g. 0.95.
	ConfidenceLevel float64 `mapstructure:"confidence_level"`
	// HoldoutRatio is the tail share of history reserved for empirical
	// residual variance in the fluctuation predictor.
	HoldoutRatio float64 `mapstructure:"holdout_ratio"`
	// HistoryDays is how much history to load per request.
	HistoryDays int `mapstructure:"history_days"`
	// AdaptiveWeights enables evaluator-driven reweighting of ensemble
	// components. Off by default; weights are equal when disabled.
	AdaptiveWeights bool `mapstructure:"adaptive_weights"`
	// OutlierScreening enables sigma-band outlier replacement before
	// decomposition.
	OutlierScreening bool    `mapstructure:"outlier_screening"`
	OutlierSigma     float64 `mapstructure:"outlier_sigma"`
}

// SpatialConfig holds the propagation constants for the spatial predictor.
// These vary per basin and are never hardcoded in the predictor itself.
type SpatialConfig struct {
	// MaxHops bounds upstream traversal, guaranteeing termination even when
	// stored topology contains a cycle.
	MaxHops int `mapstructure:"max_hops"`
	// PropagationSpeedKM is the assumed wave travel distance per sampling
	// period, used to derive per-neighbor lags.
	PropagationSpeedKM float64 `mapstructure:"propagation_speed_km"`
	// DistanceDecay scales the inverse-distance weight falloff.
	DistanceDecay float64 `mapstructure:"distance_decay"`
	// FlowsToWeight and InfluencesWeight are edge-kind multipliers;
	// reservoir influence edges carry a distinct profile from river flow.
	FlowsToWeight    float64 `mapstructure:"flows_to_weight"`
	InfluencesWeight float64 `mapstructure:"influences_weight"`
}

type CacheConfig struct {
	// TTL matches the ingestion interval: cached topology and decomposition
	// results expire once new observations can have landed.
	TTL string `mapstructure:"ttl"`
	// WarmSchedule is a cron expression for topology cache refresh.
	WarmSchedule string `mapstructure:"warm_schedule"`
	// WarmStations lists station ids to keep warm, if any.
	WarmStations []string `mapstructure:"warm_stations"`
}

type TimeoutConfig struct {
	ModelFit      string `mapstructure:"model_fit"`
	DatabaseQuery string `mapstructure:"database_query"`
	Request       string `mapstructure:"request"`
}

// Load reads configuration from config.yaml and HYDROCAST_-prefixed
// environment variables, with .env support in development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	setDefaults()

	viper.SetEnvPrefix("HYDROCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Forecast.DecompositionLevels < 1 || c.Forecast.DecompositionLevels > 6 {
		return fmt.Errorf("decomposition_levels must be between 1 and 6, got %d", c.Forecast.DecompositionLevels)
	}
	if c.Forecast.ConfidenceLevel <= 0 || c.Forecast.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level must be in (0, 1), got %f", c.Forecast.ConfidenceLevel)
	}
	if c.Forecast.HoldoutRatio <= 0 || c.Forecast.HoldoutRatio >= 1 {
		return fmt.Errorf("holdout_ratio must be in (0, 1), got %f", c.Forecast.HoldoutRatio)
	}
	if c.Spatial.PropagationSpeedKM <= 0 {
		return fmt.Errorf("propagation_speed_km must be positive, got %f", c.Spatial.PropagationSpeedKM)
	}
	if c.Spatial.MaxHops < 1 {
		return fmt.Errorf("max_hops must be at least 1, got %d", c.Spatial.MaxHops)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "hydrocast")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("forecast.decomposition_levels", 3)
	viper.SetDefault("forecast.seasonal_period", 365)
	viper.SetDefault("forecast.max_horizon", 30)
	viper.SetDefault("forecast.confidence_level", 0.95)
	viper.SetDefault("forecast.holdout_ratio", 0.2)
	viper.SetDefault("forecast.history_days", 730)
	viper.SetDefault("forecast.adaptive_weights", false)
	viper.SetDefault("forecast.outlier_screening", true)
	viper.SetDefault("forecast.outlier_sigma", 3.0)

	viper.SetDefault("spatial.max_hops", 10)
	viper.SetDefault("spatial.propagation_speed_km", 50.0)
	viper.SetDefault("spatial.distance_decay", 0.02)
	viper.SetDefault("spatial.flows_to_weight", 1.0)
	viper.SetDefault("spatial.influences_weight", 0.6)

	viper.SetDefault("cache.ttl", "15m")
	viper.SetDefault("cache.warm_schedule", "@every 15m")
	viper.SetDefault("cache.warm_stations", []string{})

	viper.SetDefault("timeouts.model_fit", "10s")
	viper.SetDefault("timeouts.database_query", "5s")
	viper.SetDefault("timeouts.request", "30s")
}
