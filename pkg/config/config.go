package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot       BotConfig                 `mapstructure:"bot"`
	Database  DatabaseConfig            `mapstructure:"database"`
	OpenAI    OpenAIConfig              `mapstructure:"openai"`
	Lifecycle LifecycleConfig           `mapstructure:"lifecycle"`
	Poller    PollerConfig              `mapstructure:"poller"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
}

type BotConfig struct {
	ContextLimit    int    `mapstructure:"context_limit"`
	FarewellText    string `mapstructure:"farewell_text"`
	FallbackText    string `mapstructure:"fallback_text"`
	TypingEmulation bool   `mapstructure:"typing_emulation"`
	SystemPrompt    string `mapstructure:"system_prompt"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type LifecycleConfig struct {
	RejectionPhrases []string `mapstructure:"rejection_phrases"`
	InterestKeywords []string `mapstructure:"interest_keywords"`
	EngagedThreshold int      `mapstructure:"engaged_threshold"`
}

type PollerConfig struct {
	PollMinSeconds      int `mapstructure:"poll_min_seconds"`
	PollMaxSeconds      int `mapstructure:"poll_max_seconds"`
	BackoffMinSeconds   int `mapstructure:"backoff_min_seconds"`
	BackoffMaxSeconds   int `mapstructure:"backoff_max_seconds"`
	MessageDelaySeconds int `mapstructure:"message_delay_seconds"`
}

func (p PollerConfig) PollMin() time.Duration      { return time.Duration(p.PollMinSeconds) * time.Second }
func (p PollerConfig) PollMax() time.Duration      { return time.Duration(p.PollMaxSeconds) * time.Second }
func (p PollerConfig) BackoffMin() time.Duration   { return time.Duration(p.BackoffMinSeconds) * time.Second }
func (p PollerConfig) BackoffMax() time.Duration   { return time.Duration(p.BackoffMaxSeconds) * time.Second }
func (p PollerConfig) MessageDelay() time.Duration { return time.Duration(p.MessageDelaySeconds) * time.Second }

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type WorkingHoursConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Start   int  `mapstructure:"start"`
	End     int  `mapstructure:"end"`
}

type PlatformConfig struct {
	Enabled            bool               `mapstructure:"enabled"`
	Token              string             `mapstructure:"token"`
	MaxMessagesPerDay  int                `mapstructure:"max_messages_per_day"`
	MinIntervalMinutes int                `mapstructure:"min_interval_minutes"`
	WorkingHours       WorkingHoursConfig `mapstructure:"working_hours"`
	StyleHint          string             `mapstructure:"style_hint"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("bot.context_limit", 10)
	v.SetDefault("bot.typing_emulation", true)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("lifecycle.engaged_threshold", 50)
	v.SetDefault("poller.poll_min_seconds", 60)
	v.SetDefault("poller.poll_max_seconds", 120)
	v.SetDefault("poller.backoff_min_seconds", 300)
	v.SetDefault("poller.backoff_max_seconds", 600)
	v.SetDefault("poller.message_delay_seconds", 2)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("platforms.telegram.max_messages_per_day", 50)
	v.SetDefault("platforms.telegram.min_interval_minutes", 15)
	v.SetDefault("platforms.telegram.working_hours.start", 10)
	v.SetDefault("platforms.telegram.working_hours.end", 21)
	v.SetDefault("platforms.instagram.max_messages_per_day", 45)
	v.SetDefault("platforms.instagram.min_interval_minutes", 15)
	v.SetDefault("platforms.instagram.working_hours.enabled", true)
	v.SetDefault("platforms.instagram.working_hours.start", 10)
	v.SetDefault("platforms.instagram.working_hours.end", 21)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.Platforms == nil {
		config.Platforms = make(map[string]PlatformConfig)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		platform := config.Platforms["telegram"]
		platform.Token = token
		platform.Enabled = true
		config.Platforms["telegram"] = platform
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
