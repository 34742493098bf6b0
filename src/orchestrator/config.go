package orchestrator

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Workers bounds concurrent executions; sized to the broker layer's
	// safe concurrency so per-broker rate limits are respected.
	Workers   int `envconfig:"EXECUTION_WORKERS" default:"8"`
	QueueSize int `envconfig:"EXECUTION_QUEUE_SIZE" default:"256"`

	SubmitTimeout time.Duration `envconfig:"BROKER_SUBMIT_TIMEOUT" default:"10s"`

	RetryAttempts    int           `envconfig:"BROKER_RETRY_ATTEMPTS" default:"3"`
	RetryBaseBackoff time.Duration `envconfig:"BROKER_RETRY_BASE_BACKOFF" default:"1s"`

	// StatusPollAttempts bounds the follow-up polls after a broker
	// acknowledged without a terminal status.
	StatusPollAttempts int           `envconfig:"STATUS_POLL_ATTEMPTS" default:"2"`
	StatusPollInterval time.Duration `envconfig:"STATUS_POLL_INTERVAL" default:"2s"`

	// SweepGracePeriod is how old a pending row must be before the
	// recovery sweep re-drives it.
	SweepGracePeriod time.Duration `envconfig:"SWEEP_GRACE_PERIOD" default:"2m"`
	SweepBatchSize   int           `envconfig:"SWEEP_BATCH_SIZE" default:"200"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
