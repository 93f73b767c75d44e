package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/uksgomel/uks_checker/internal/logger"
)

const envPrefix = "UKS"

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Sources  SourcesConfig
	Schedule ScheduleConfig
	Fetch    FetchConfig
	Telegram TelegramConfig
	Notify   NotifyConfig
	Misc     MiscConfig
}

type ServerConfig struct {
	Enabled            bool
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	ProbeTimeout       time.Duration
	CORSAllowedOrigins string
}

type DataConfig struct {
	StateFile    string `validate:"required"`
	DownloadsDir string
}

// SourcesConfig names the monitored pages and the link patterns used to pick candidates.
type SourcesConfig struct {
	BaseURL            string `validate:"required,url"`
	DocumentsURL       string `validate:"required,url"`
	DocumentPattern    string `validate:"required"`
	CheckDocumentLinks bool
	ArticlesURL        string `validate:"required,url"`
	ArticlePattern     string `validate:"required"`
	PageURL            string `validate:"required,url"`
}

// ScheduleConfig holds the poll interval and the delay before the first run of each kind.
type ScheduleConfig struct {
	Enabled           bool
	DocumentsInterval time.Duration
	ArticlesInterval  time.Duration
	PageInterval      time.Duration
	DocumentsDelay    time.Duration
	ArticlesDelay     time.Duration
	PageDelay         time.Duration
}

type FetchConfig struct {
	UserAgent       string
	GetTimeout      time.Duration
	HeadTimeout     time.Duration
	DownloadTimeout time.Duration
	MaxRetries      int `validate:"min=0,max=10"`
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	MaxBodyBytes    int64 `validate:"gt=0"`
}

type TelegramConfig struct {
	BotToken    string `validate:"required"`
	ChatID      int64  `validate:"required"`
	Commands    bool
	APIEndpoint string
}

type NotifyConfig struct {
	MaxAttachmentBytes int64 `validate:"gt=0"`
}

type MiscConfig struct {
	LogLevel string
	GinMode  string
}

// LoadConfig reads config.yaml from UKS_CONFIG_PATH (default ./config), applies
// UKS_* env overrides and the legacy bare variable names, and validates the result.
func LoadConfig() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot read .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnvOrDefault(envPrefix+"_CONFIG_PATH", "./config"))

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}

	documentsInterval, err := getMinutesEnvOrViper(v, "CHECK_EVERY_MINUTES", "schedule.documents_interval")
	if err != nil {
		return nil, err
	}
	articlesInterval, err := getMinutesEnvOrViper(v, "NEWS_CHECK_INTERVAL", "schedule.articles_interval")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Enabled:            v.GetBool("server.enabled"),
			Port:               port,
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			ProbeTimeout:       v.GetDuration("server.probe_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Data: DataConfig{
			StateFile:    v.GetString("data.state_file"),
			DownloadsDir: v.GetString("data.downloads_dir"),
		},
		Sources: SourcesConfig{
			BaseURL:            v.GetString("sources.base_url"),
			DocumentsURL:       v.GetString("sources.documents_url"),
			DocumentPattern:    v.GetString("sources.document_pattern"),
			CheckDocumentLinks: v.GetBool("sources.check_document_links"),
			ArticlesURL:        v.GetString("sources.articles_url"),
			ArticlePattern:     v.GetString("sources.article_pattern"),
			PageURL:            v.GetString("sources.page_url"),
		},
		Schedule: ScheduleConfig{
			Enabled:           v.GetBool("schedule.enabled"),
			DocumentsInterval: documentsInterval,
			ArticlesInterval:  articlesInterval,
			PageInterval:      v.GetDuration("schedule.page_interval"),
			DocumentsDelay:    v.GetDuration("schedule.documents_delay"),
			ArticlesDelay:     v.GetDuration("schedule.articles_delay"),
			PageDelay:         v.GetDuration("schedule.page_delay"),
		},
		Fetch: FetchConfig{
			UserAgent:       v.GetString("fetch.user_agent"),
			GetTimeout:      v.GetDuration("fetch.get_timeout"),
			HeadTimeout:     v.GetDuration("fetch.head_timeout"),
			DownloadTimeout: v.GetDuration("fetch.download_timeout"),
			MaxRetries:      v.GetInt("fetch.max_retries"),
			InitialBackoff:  v.GetDuration("fetch.initial_backoff"),
			MaxBackoff:      v.GetDuration("fetch.max_backoff"),
			MaxBodyBytes:    v.GetInt64("fetch.max_body_bytes"),
		},
		Telegram: TelegramConfig{
			BotToken:    v.GetString("telegram.bot_token"),
			ChatID:      v.GetInt64("telegram.chat_id"),
			Commands:    v.GetBool("telegram.commands"),
			APIEndpoint: v.GetString("telegram.api_endpoint"),
		},
		Notify: NotifyConfig{
			MaxAttachmentBytes: v.GetInt64("notify.max_attachment_bytes"),
		},
		Misc: MiscConfig{
			LogLevel: v.GetString("misc.log_level"),
			GinMode:  v.GetString("misc.gin_mode"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := ensureDir(filepath.Dir(cfg.Data.StateFile)); err != nil {
		return nil, fmt.Errorf("state directory: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 45*time.Second)
	// Manual probes wait for fetch retries and Telegram uploads.
	v.SetDefault("server.probe_timeout", 2*time.Minute)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("data.state_file", "./state/last.json")
	v.SetDefault("data.downloads_dir", "./downloads")

	v.SetDefault("sources.base_url", "https://uksgomel.by")
	v.SetDefault("sources.documents_url", "https://uksgomel.by/centr-prodazh")
	v.SetDefault("sources.document_pattern", `free_flats_(\d{8})_?\.pdf$`)
	v.SetDefault("sources.check_document_links", true)
	v.SetDefault("sources.articles_url", "https://uksgomel.by/novosti")
	v.SetDefault("sources.article_pattern", `^/novosti/\d+`)
	v.SetDefault("sources.page_url", "https://uksgomel.by/stranica-1")

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.documents_interval", 30*time.Minute)
	v.SetDefault("schedule.articles_interval", 60*time.Minute)
	v.SetDefault("schedule.page_interval", 60*time.Minute)
	v.SetDefault("schedule.documents_delay", 5*time.Second)
	v.SetDefault("schedule.articles_delay", 10*time.Second)
	v.SetDefault("schedule.page_delay", 15*time.Second)

	v.SetDefault("fetch.user_agent", "Mozilla/5.0")
	v.SetDefault("fetch.get_timeout", 10*time.Second)
	v.SetDefault("fetch.head_timeout", 5*time.Second)
	v.SetDefault("fetch.download_timeout", 15*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.initial_backoff", 500*time.Millisecond)
	v.SetDefault("fetch.max_backoff", 10*time.Second)
	v.SetDefault("fetch.max_body_bytes", 200<<20)

	v.SetDefault("telegram.commands", true)
	v.SetDefault("telegram.api_endpoint", "")

	// Telegram bots may upload documents up to 50 MB.
	v.SetDefault("notify.max_attachment_bytes", 50<<20)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

// bindLegacyEnv keeps the variable names of earlier deployments working.
// UKS_* names take precedence over the bare ones.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"telegram.bot_token":       "BOT_TOKEN",
		"telegram.chat_id":         "CHAT_ID",
		"sources.documents_url":    "PAGE_URL",
		"sources.base_url":         "BASE_URL",
		"sources.articles_url":     "NEWS_PAGE_URL",
		"sources.document_pattern": "PATTERN",
		"sources.article_pattern":  "NEWS_LINK_RE",
		"data.state_file":          "STATE_FILE",
	}
	for key, name := range legacy {
		envName := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envName, name)
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server port: %d", c.Server.Port)
		}
		if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 || c.Server.ShutDownTimeout <= 0 {
			return errors.New("server timeouts must be positive")
		}
		if c.Server.ProbeTimeout < c.Server.RequestTimeout {
			return fmt.Errorf("probe timeout %v must not be shorter than request timeout %v", c.Server.ProbeTimeout, c.Server.RequestTimeout)
		}
	}

	if c.Schedule.DocumentsInterval <= 0 || c.Schedule.ArticlesInterval <= 0 || c.Schedule.PageInterval <= 0 {
		return errors.New("schedule intervals must be positive")
	}
	if c.Schedule.DocumentsDelay < 0 || c.Schedule.ArticlesDelay < 0 || c.Schedule.PageDelay < 0 {
		return errors.New("schedule delays must not be negative")
	}

	if c.Fetch.GetTimeout <= 0 || c.Fetch.HeadTimeout <= 0 || c.Fetch.DownloadTimeout <= 0 {
		return errors.New("fetch timeouts must be positive")
	}
	if c.Fetch.MaxRetries > 0 && (c.Fetch.InitialBackoff <= 0 || c.Fetch.MaxBackoff < c.Fetch.InitialBackoff) {
		return fmt.Errorf("invalid fetch backoff: initial=%v max=%v", c.Fetch.InitialBackoff, c.Fetch.MaxBackoff)
	}

	if _, err := regexp.Compile(c.Sources.DocumentPattern); err != nil {
		return fmt.Errorf("invalid document pattern: %w", err)
	}
	if _, err := regexp.Compile(c.Sources.ArticlePattern); err != nil {
		return fmt.Errorf("invalid article pattern: %w", err)
	}
	if u, err := url.Parse(c.Sources.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url must be absolute: %q", c.Sources.BaseURL)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or the fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvOrViperPort prefers a bare env variable (e.g. PORT) over the viper key.
func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	if raw := os.Getenv(envKey); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}

// getMinutesEnvOrViper reads a legacy interval given in whole minutes, falling back to the
// viper duration key.
func getMinutesEnvOrViper(v *viper.Viper, envKey, viperKey string) (time.Duration, error) {
	if raw := os.Getenv(envKey); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	return v.GetDuration(viperKey), nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
