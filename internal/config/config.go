// Package config loads the dispatcher service configuration from an
// optional YAML file and PUSH_* environment variables. Environment values
// override the file.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
)

// Transports.
const (
	TransportFCM = "fcm"
	TransportLog = "log"
)

type Config struct {
	Log       Log       `yaml:"log"`
	Store     Store     `yaml:"store"`
	Firebase  Firebase  `yaml:"firebase"`
	Transport string    `yaml:"transport" env:"PUSH_TRANSPORT" env-default:"fcm"`
	NATS      NATS      `yaml:"nats"`
	HTTP      HTTP      `yaml:"http"`
	Dedupe    Dedupe    `yaml:"dedupe"`
	Telemetry Telemetry `yaml:"telemetry"`
	Payload   Payload   `yaml:"payload"`

	// Concurrency bounds resident lookups per flat.
	Concurrency int `yaml:"concurrency" env:"PUSH_RESOLVER_CONCURRENCY" env-default:"8"`
}

type Log struct {
	Level  string `yaml:"level" env:"PUSH_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"PUSH_LOG_FORMAT" env-default:"json"`
}

type Store struct {
	Backend    string `yaml:"backend" env:"PUSH_STORE" env-default:"firestore"`
	SQLitePath string `yaml:"sqlite_path" env:"PUSH_SQLITE_PATH" env-default:"pushdispatch.db"`
}

type Firebase struct {
	ProjectID       string `yaml:"project_id" env:"PUSH_FIREBASE_PROJECT"`
	CredentialsFile string `yaml:"credentials_file" env:"PUSH_FIREBASE_CREDENTIALS"`
}

type NATS struct {
	URL     string `yaml:"url" env:"PUSH_NATS_URL"`
	Subject string `yaml:"subject" env:"PUSH_NATS_SUBJECT" env-default:"documents.events"`
	Queue   string `yaml:"queue" env:"PUSH_NATS_QUEUE" env-default:"pushdispatch"`
}

type HTTP struct {
	Addr string `yaml:"addr" env:"PUSH_HTTP_ADDR" env-default:":8080"`
}

type Dedupe struct {
	RedisAddr string        `yaml:"redis_addr" env:"PUSH_REDIS_ADDR"`
	Prefix    string        `yaml:"prefix" env:"PUSH_DEDUPE_PREFIX" env-default:"pushdispatch:event:"`
	TTL       time.Duration `yaml:"ttl" env:"PUSH_DEDUPE_TTL" env-default:"24h"`
}

type Telemetry struct {
	// OTLPEndpoint enables tracing when set, e.g. "localhost:4318".
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"PUSH_OTLP_ENDPOINT"`
	Insecure     bool   `yaml:"insecure" env:"PUSH_OTLP_INSECURE"`
	ServiceName  string `yaml:"service_name" env:"PUSH_SERVICE_NAME" env-default:"pushdispatch"`
}

type Payload struct {
	AppName     string `yaml:"app_name" env:"PUSH_APP_NAME" env-default:"GateKeeper"`
	ChannelID   string `yaml:"channel_id" env:"PUSH_CHANNEL_ID" env-default:"gatekeeper_notifications"`
	ClickAction string `yaml:"click_action" env:"PUSH_CLICK_ACTION" env-default:"FLUTTER_NOTIFICATION_CLICK"`
	Badge       int    `yaml:"badge" env:"PUSH_BADGE" env-default:"1"`
}

// Load reads path, when non-empty, then the environment. Each override is
// applied before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	var cfg Config

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	for _, fn := range overrides {
		fn(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFirestore, StoreSQLite:
	default:
		return fmt.Errorf("config error: unknown store backend %q", c.Store.Backend)
	}
	switch c.Transport {
	case TransportFCM, TransportLog:
	default:
		return fmt.Errorf("config error: unknown transport %q", c.Transport)
	}
	if c.Transport == TransportFCM || c.Store.Backend == StoreFirestore {
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("config error: firebase project is required for %s/%s", c.Store.Backend, c.Transport)
		}
	}
	return nil
}

// Usage returns the environment variable help text.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
