package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bus-bay-prediction-api/predictor"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Scraper     ScraperConfig
	Weather     WeatherConfig
	Recorder    RecorderConfig
	MQTT        MQTTConfig
	Features    FeatureConfig
	Log         LogConfig
	Predictor   predictor.Config
	SchoolTerms []SchoolTerm
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins string
}

type ScraperConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

type WeatherConfig struct {
	APIKey       string
	BaseURL      string
	Location     string
	CacheMinutes int
}

type RecorderConfig struct {
	Interval    time.Duration
	StartHour   int
	EndHour     int
	Timezone    string
	MetricsAddr string
}

type MQTTConfig struct {
	URL         string
	TopicPrefix string
	ClientID    string
}

type FeatureConfig struct {
	PredictionsEnabled bool
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// SchoolTerm is an inclusive range of calendar dates.
type SchoolTerm struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on any day from Start through End.
func (s SchoolTerm) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(s.Start) && !day.After(s.End)
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	scrapeTimeout, err := getIntEnv("SCRAPER_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT_SEC: %w", err)
	}

	scrapeAttempts, err := getIntEnv("SCRAPER_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_MAX_ATTEMPTS: %w", err)
	}

	weatherCache, err := getIntEnv("WEATHER_CACHE_MINUTES", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CACHE_MINUTES: %w", err)
	}

	recorderInterval, err := getIntEnv("RECORDER_INTERVAL_SEC", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid RECORDER_INTERVAL_SEC: %w", err)
	}

	startHour, err := getIntEnv("RECORDER_START_HOUR", 14)
	if err != nil {
		return nil, fmt.Errorf("invalid RECORDER_START_HOUR: %w", err)
	}

	endHour, err := getIntEnv("RECORDER_END_HOUR", 19)
	if err != nil {
		return nil, fmt.Errorf("invalid RECORDER_END_HOUR: %w", err)
	}

	predictionsEnabled, err := getBoolEnv("PREDICTIONS_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTIONS_ENABLED: %w", err)
	}

	prettyLogs, err := getBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_PRETTY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       dbPort,
			User:       getEnv("DB_USER", "businfo"),
			Password:   getEnv("DB_PASSWORD", "businfo_dev_password"),
			Name:       getEnv("DB_NAME", "businfo"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_DATABASE", "data/businfo.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Scraper: ScraperConfig{
			URL:         getEnv("BUS_INFO_URL", "https://webservices.runshaw.ac.uk/bus/BusDepartures.aspx"),
			Timeout:     time.Duration(scrapeTimeout) * time.Second,
			MaxAttempts: scrapeAttempts,
			RetryDelay:  time.Second,
		},
		Weather: WeatherConfig{
			APIKey:       getEnv("WEATHER_API_KEY", ""),
			BaseURL:      getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),
			Location:     getEnv("WEATHER_LOCATION", "Leyland,UK"),
			CacheMinutes: weatherCache,
		},
		Recorder: RecorderConfig{
			Interval:    time.Duration(recorderInterval) * time.Second,
			StartHour:   startHour,
			EndHour:     endHour,
			Timezone:    getEnv("RECORDER_TIMEZONE", "Europe/London"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		MQTT: MQTTConfig{
			URL:         getEnv("MQTT_URL", ""),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "businfo/arrivals"),
			ClientID:    getEnv("MQTT_CLIENT_ID", ""),
		},
		Features: FeatureConfig{
			PredictionsEnabled: predictionsEnabled,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: prettyLogs,
		},
		Predictor:   predictor.DefaultConfig(),
		SchoolTerms: DefaultSchoolTerms(),
	}

	if path := getEnv("PREDICTOR_CONFIG", ""); path != "" {
		if err := cfg.loadTuningFile(path); err != nil {
			return nil, fmt.Errorf("invalid PREDICTOR_CONFIG: %w", err)
		}
	}

	return cfg, nil
}

func DefaultSchoolTerms() []SchoolTerm {
	return []SchoolTerm{{
		Start: time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC),
	}}
}

type tuningFile struct {
	Predictor   predictor.Config `yaml:"predictor"`
	SchoolTerms []struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"school_terms"`
}

// loadTuningFile overlays the YAML file onto the current predictor settings.
// Keys missing from the file keep their defaults.
func (c *Config) loadTuningFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tf := tuningFile{Predictor: c.Predictor}
	if err := yaml.NewDecoder(f).Decode(&tf); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := tf.Predictor.Validate(); err != nil {
		return err
	}
	c.Predictor = tf.Predictor

	if len(tf.SchoolTerms) == 0 {
		return nil
	}

	terms := make([]SchoolTerm, 0, len(tf.SchoolTerms))
	for _, t := range tf.SchoolTerms {
		start, err := time.Parse(time.DateOnly, t.Start)
		if err != nil {
			return fmt.Errorf("school term start %q: %w", t.Start, err)
		}
		end, err := time.Parse(time.DateOnly, t.End)
		if err != nil {
			return fmt.Errorf("school term end %q: %w", t.End, err)
		}
		if end.Before(start) {
			return fmt.Errorf("school term %s ends before it starts", t.Start)
		}
		terms = append(terms, SchoolTerm{Start: start, End: end})
	}
	c.SchoolTerms = terms

	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}
