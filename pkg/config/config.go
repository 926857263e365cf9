package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "GETSUM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "GETSUM_APP_ENV"
	EnvLogLevel            = "GETSUM_LOG_LEVEL"
	EnvInputKey            = "GETSUM_INPUT_KEY"
	EnvOutputKey           = "GETSUM_OUTPUT_KEY"
	EnvRedisURL            = "GETSUM_REDIS_URL"
	EnvGCPProjectID        = "GETSUM_GCP_PROJECT_ID"
	EnvPubSubInputSub      = "GETSUM_PUBSUB_INPUT_SUBSCRIPTION"
	EnvPubSubSuccessTopic  = "GETSUM_PUBSUB_SUCCESS_TOPIC"
	EnvPubSubFailureTopic  = "GETSUM_PUBSUB_FAILURE_TOPIC"
	EnvEventingIdempotency = "GETSUM_EVENTING_IDEMPOTENCY_TTL"
	EnvOpsPort             = "GETSUM_OPS_PORT"
)

var validate = validator.New()

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	Node     NodeConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Eventing EventingConfig
	Ops      OpsConfig
}

// Load reads the environment and validates the resulting configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the non-empty constraints envconfig cannot express:
// envconfig's required tag accepts a variable that is set but blank.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fe.Namespace())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"GETSUM_APP_ENV" required:"true" validate:"required"`
	LogLevel     string `envconfig:"GETSUM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GETSUM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GETSUM_SERVICE_KIND" default:"getsum-worker"`
}

// NodeConfig carries the two strings the sum node is configured with.
type NodeConfig struct {
	InputKey  string `envconfig:"GETSUM_INPUT_KEY" required:"true" validate:"required"`
	OutputKey string `envconfig:"GETSUM_OUTPUT_KEY" required:"true" validate:"required"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GETSUM_REDIS_URL"`
	Address      string        `envconfig:"GETSUM_REDIS_ADDR"`
	Password     string        `envconfig:"GETSUM_REDIS_PASSWORD"`
	DB           int           `envconfig:"GETSUM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GETSUM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GETSUM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GETSUM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GETSUM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GETSUM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GETSUM_GCP_PROJECT_ID" required:"true" validate:"required"`
	CredentialsJSON        string `envconfig:"GETSUM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GETSUM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InputSubscription string `envconfig:"GETSUM_PUBSUB_INPUT_SUBSCRIPTION" required:"true" validate:"required"`
	SuccessTopic      string `envconfig:"GETSUM_PUBSUB_SUCCESS_TOPIC" required:"true" validate:"required"`
	FailureTopic      string `envconfig:"GETSUM_PUBSUB_FAILURE_TOPIC" required:"true" validate:"required"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"GETSUM_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type OpsConfig struct {
	Port              string        `envconfig:"GETSUM_OPS_PORT" default:"9090"`
	ReadHeaderTimeout time.Duration `envconfig:"GETSUM_OPS_READ_HEADER_TIMEOUT" default:"5s"`
}

// Addr returns the listen address for the ops HTTP server.
func (o OpsConfig) Addr() string {
	port := strings.TrimSpace(o.Port)
	if port == "" {
		port = "9090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
