// Package config reads the counter's settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	BackendMemory    = "memory"
	BackendDatastore = "datastore"
	BackendDynamoDB  = "dynamodb"
	BackendRedis     = "redis"

	HandlerModeInvoke = "invoke"
	HandlerModeAPIGW  = "apigw"
)

var (
	Backends     = []string{BackendMemory, BackendDatastore, BackendDynamoDB, BackendRedis}
	HandlerModes = []string{HandlerModeInvoke, HandlerModeAPIGW}
)

type Config struct {
	Backend      string `env:"COUNTER_BACKEND" envDefault:"memory"`
	Table        string `env:"COUNTER_TABLE" envDefault:"stats"`
	Key          string `env:"COUNTER_KEY" envDefault:"viewCount"`
	KeyAttribute string `env:"COUNTER_KEY_ATTRIBUTE" envDefault:"stats"`
	GuardWrites  bool   `env:"COUNTER_GUARD_WRITES" envDefault:"false"`

	ProjectID          string `env:"PROJECT_ID"`
	DatastoreNamespace string `env:"DATASTORE_NAMESPACE"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	AWSRegion        string `env:"AWS_REGION"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HandlerMode string `env:"HANDLER_MODE" envDefault:"invoke"`
	Port        string `env:"PORT" envDefault:"8080"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("env.Parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if !lo.Contains(Backends, c.Backend) {
		return fmt.Errorf("COUNTER_BACKEND must be one of %v: %q", Backends, c.Backend)
	}
	if !lo.Contains(HandlerModes, c.HandlerMode) {
		return fmt.Errorf("HANDLER_MODE must be one of %v: %q", HandlerModes, c.HandlerMode)
	}
	if c.Table == "" {
		return fmt.Errorf("COUNTER_TABLE must be specified")
	}
	if c.Key == "" {
		return fmt.Errorf("COUNTER_KEY must be specified")
	}
	if c.Backend == BackendDatastore && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID must be specified for datastore")
	}
	return nil
}

// Persistent reports whether the backend outlives the process.
func (c *Config) Persistent() bool {
	return c.Backend != BackendMemory
}
