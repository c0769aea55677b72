package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the application's configuration.
type Config struct {
	BaseDir  string
	Lat      float64
	Lon      float64
	TimeZone *time.Location

	// Netatmo
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	NetatmoAPIURL string

	// SolarEdge
	SolarEdgeSiteID string
	SolarEdgeAPIKey string
	SolarEdgeAPIURL string

	// api.met.no
	MetNoAPIURL    string
	MetNoUserAgent string

	NetatmoInterval     time.Duration
	AstronomyInterval   time.Duration
	PVMinInterval       time.Duration
	PVFlushInterval     time.Duration
	HealthCheckInterval time.Duration
	PVMaxQueries        int
	WaitForNetwork      time.Duration

	TokenFile           string
	PressureHistoryFile string
	CacheFile           string
	PVDailyFile         string
	ArchiveDir          string

	ListenAddr     string
	AllowedOrigins []string

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	MQTTBroker      string
	MQTTTopicPrefix string

	Auth *AuthConfig

	LogLevel string
	LogFile  string
}

// NetatmoEnabled reports whether OAuth client credentials are present.
func (c Config) NetatmoEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

func (c Config) InfluxEnabled() bool {
	return c.InfluxDBURL != "" && c.InfluxDBToken != "" && c.InfluxDBOrg != ""
}

func (c Config) RedisEnabled() bool { return c.RedisAddr != "" }

func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// LoadConfig loads the configuration from BASE_DIR/.env and the process environment.
func LoadConfig() (Config, error) {
	baseDir := os.Getenv("BASE_DIR")
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		baseDir = wd
	}

	envPath := filepath.Join(baseDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Info().Str("path", envPath).Msg("No .env file found, relying on system environment variables")
	}

	cfg := Config{
		BaseDir:         baseDir,
		ClientID:        os.Getenv("CLIENT_ID"),
		ClientSecret:    os.Getenv("CLIENT_SECRET"),
		RedirectURI:     os.Getenv("REDIRECT_URI"),
		NetatmoAPIURL:   getEnv("NETATMO_API_URL", "https://api.netatmo.com"),
		SolarEdgeSiteID: os.Getenv("SOLAREDGE_SITE_ID"),
		SolarEdgeAPIKey: os.Getenv("SOLAREDGE_API_KEY"),
		SolarEdgeAPIURL: getEnv("SOLAREDGE_API_URL", "https://monitoringapi.solaredge.com"),
		MetNoAPIURL:     getEnv("METNO_API_URL", "https://api.met.no"),
		MetNoUserAgent:  userAgent(os.Getenv("CONTACT_EMAIL")),

		TokenFile:           filepath.Join(baseDir, "access_token.json"),
		PressureHistoryFile: filepath.Join(baseDir, "pressure_history_7inch.json"),
		CacheFile:           filepath.Join(baseDir, "dashboard_cache.json"),
		PVDailyFile:         filepath.Join(baseDir, "pv_daily_data.json"),
		ArchiveDir:          filepath.Join(baseDir, "archive"),

		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		InfluxDBURL:    os.Getenv("INFLUXDB_URL"),
		InfluxDBToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:    os.Getenv("INFLUXDB_ORG"),
		InfluxDBBucket: getEnv("INFLUXDB_BUCKET", "homedash"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "homedash"),

		Auth: LoadAuthConfig(),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", filepath.Join(baseDir, "dashboard.log")),
	}

	var err error
	if cfg.Lat, err = getEnvFloat("LOCATION_LAT", 47.3769); err != nil {
		return Config{}, err
	}
	if cfg.Lon, err = getEnvFloat("LOCATION_LON", 8.5417); err != nil {
		return Config{}, err
	}
	if cfg.TimeZone, err = time.LoadLocation(getEnv("TIMEZONE", "Europe/Zurich")); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"NETATMO_INTERVAL", 5 * time.Minute, &cfg.NetatmoInterval},
		{"ASTRONOMY_INTERVAL", 15 * time.Minute, &cfg.AstronomyInterval},
		{"PV_MIN_INTERVAL", time.Minute, &cfg.PVMinInterval},
		{"PV_FLUSH_INTERVAL", 5 * time.Minute, &cfg.PVFlushInterval},
		{"HEALTH_CHECK_INTERVAL", time.Minute, &cfg.HealthCheckInterval},
		{"WAIT_FOR_NETWORK", 30 * time.Second, &cfg.WaitForNetwork},
		{"REDIS_TTL", 7 * 24 * time.Hour, &cfg.RedisTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	if cfg.PVMaxQueries, err = getEnvInt("PV_MAX_QUERIES", 280); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	if cfg.SolarEdgeAPIKey == "" {
		log.Warn().Str("path", envPath).Msg("No SolarEdge keys found, PV source disabled")
	}
	return cfg, nil
}

func userAgent(contactEmail string) string {
	if contactEmail != "" {
		return fmt.Sprintf("SmartHomeDashboard/6.0 (Raspberry Pi; Linux; contact: %s; github.com/smarthome-dashboard)", contactEmail)
	}
	return "SmartHomeDashboard/6.0 (Raspberry Pi; Linux; github.com/smarthome-dashboard)"
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
