package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Polling  PollingConfig  `yaml:"polling"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Kafka    KafkaConfig    `yaml:"kafka"`

	// Secrets are never read from config.yaml; InitApp fills them from the
	// environment (optionally seeded by a local .env file).
	InferenceAPIToken string `yaml:"-"`
	MongoURI          string `yaml:"-"`
	KafkaBrokers      string `yaml:"-"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ProviderConfig points at the hosted inference provider.
// BaseURL is the root of a Replicate-compatible predictions API
// (create/poll live under {base_url}/v1/predictions). VideoModel is the
// model invoked through the direct synchronous inference endpoint.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	ModelVersion   string `yaml:"model_version"`
	VideoModel     string `yaml:"video_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PollingConfig bounds the prediction poll loop. MaxAttempts defaults to 30
// and DelayMs to 1000, giving a 30 s worst-case ceiling per generation.
type PollingConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
}

type MongoConfig struct {
	DBName string `yaml:"db_name"`
}

type KafkaConfig struct {
	Topic string `yaml:"topic"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	// load configuration file
	data, err := os.ReadFile(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}

	var c AppConfig
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		panic(err)
	}

	c.InferenceAPIToken = os.Getenv("INFERENCE_API_TOKEN")
	c.MongoURI = os.Getenv("MONGO_URI")
	c.KafkaBrokers = os.Getenv("KAFKA_BOOTSTRAP_SERVERS")

	applyDefaults(&c)
	config = &c
}

func applyDefaults(c *AppConfig) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Polling.MaxAttempts <= 0 {
		c.Polling.MaxAttempts = 30
	}
	if c.Polling.DelayMs <= 0 {
		c.Polling.DelayMs = 1000
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 60
	}
	if c.Mongo.DBName == "" {
		c.Mongo.DBName = "mediastudio"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "media-studio.generation.events"
	}
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
