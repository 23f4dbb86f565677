package fleet

import (
	"math"
	"time"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// TaskRetryState tracks a failed task waiting to be republished.
type TaskRetryState struct {
	Task        Task
	Attempts    int
	MaxRetries  int
	LastAttempt time.Time
	NextRetry   time.Time
	LastError   string
}

// DLQEntry is a task that exhausted its retries.
type DLQEntry struct {
	Task          Task      `json:"task"`
	FailureReason string    `json:"failure_reason"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	AddedAt       time.Time `json:"added_at"`
}

func calculateBackoff(attempts int, config RetryConfig) time.Duration {
	if attempts == 0 {
		return 0
	}
	backoff := math.Pow(config.BackoffFactor, float64(attempts))
	backoff = backoff * float64(config.InitialBackoff)
	backoff = math.Min(backoff, float64(config.MaxBackoff))

	return time.Duration(backoff)
}
