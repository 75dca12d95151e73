package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/mosli/threadloom/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Auth      AuthConfig      `yaml:"auth"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Publisher PublisherConfig `yaml:"publisher"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Features  FeatureConfig   `yaml:"features"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	// TOTPSecret guards the operator API; empty disables the middleware.
	TOTPSecret string `yaml:"totp_secret"`
}

type ScraperConfig struct {
	Handles      []string `yaml:"handles"`
	BearerToken  string   `yaml:"bearer_token"`
	DefaultLimit int      `yaml:"default_limit"`
}

type OpenAIConfig struct {
	APIKey           string `yaml:"api_key"`
	TranslationModel string `yaml:"translation_model"`
	SummaryModel     string `yaml:"summary_model"`
	RequestTimeout   int    `yaml:"request_timeout"`
	MaxRetries       int    `yaml:"max_retries"`
}

// PublisherProfile is one complete set of posting credentials. Profiles are an
// ordered list keyed by name, so a listed profile can never resolve to
// out-of-range credentials.
type PublisherProfile struct {
	Name              string `yaml:"name"`
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
	ClosingMessage    string `yaml:"closing_message"`
}

type PublisherConfig struct {
	DefaultProfile string             `yaml:"default_profile"`
	TitleCount     int                `yaml:"title_count"`
	Profiles       []PublisherProfile `yaml:"profiles"`
}

type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PassInterval string `yaml:"pass_interval"`
}

type FeatureConfig struct {
	EnableTranslationTitles bool `yaml:"enable_translation_titles"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5335
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Scraper.DefaultLimit == 0 {
		cfg.Scraper.DefaultLimit = 40
	}
	if cfg.OpenAI.TranslationModel == "" {
		cfg.OpenAI.TranslationModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.SummaryModel == "" {
		cfg.OpenAI.SummaryModel = "gpt-4o"
	}
	if cfg.OpenAI.RequestTimeout == 0 {
		cfg.OpenAI.RequestTimeout = 60
	}
	if cfg.OpenAI.MaxRetries == 0 {
		cfg.OpenAI.MaxRetries = 3
	}
	if cfg.Publisher.DefaultProfile == "" {
		cfg.Publisher.DefaultProfile = "default"
	}
	if cfg.Publisher.TitleCount == 0 {
		cfg.Publisher.TitleCount = 5
	}
	if cfg.Scheduler.PassInterval == "" {
		cfg.Scheduler.PassInterval = "1m"
	}

	return cfg, nil
}

// ResolveProfile returns the publisher profile with the given name.
func (c *PublisherConfig) ResolveProfile(name string) (PublisherProfile, bool) {
	for _, profile := range c.Profiles {
		if profile.Name == name {
			return profile, true
		}
	}
	return PublisherProfile{}, false
}
