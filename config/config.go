package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator configuration. Every external endpoint is
// optional: with nothing configured the service runs fully in-process on
// the in-memory store, which is what local demos and tests use.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Generator GeneratorConfig `yaml:"generator"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty runs on the in-memory store
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables ingest deduplication
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"` // empty disables the ingest consumer
	OperationsTopic string   `yaml:"operations_topic"`
	DeadLetterTopic string   `yaml:"dead_letter_topic"`
	AuditTopic      string   `yaml:"audit_topic"`
	GroupID         string   `yaml:"group_id"`
}

type GeneratorConfig struct {
	Endpoint       string `yaml:"endpoint"` // empty uses the template generator
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WorkflowConfig struct {
	MapConcurrency          int `yaml:"map_concurrency"`
	StoreTimeoutSeconds     int `yaml:"store_timeout_seconds"`
	GeneratorTimeoutSeconds int `yaml:"generator_timeout_seconds"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Address: ":8080"},
		Kafka: KafkaConfig{
			OperationsTopic: "flight-operations",
			DeadLetterTopic: "workflow-failures",
			AuditTopic:      "notification-audit",
			GroupID:         "flightpulse-orchestrator",
		},
		Workflow: WorkflowConfig{
			MapConcurrency: 10,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
