package polling

import (
	"fmt"
	"time"

	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Policy controls how often and for how long a job is polled. The interval
// starts at InitialInterval and grows by Step after every status read, capped
// at MaxInterval. Polling stops after MaxWait, or after MaxAttempts status
// reads when MaxAttempts is positive.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Step            time.Duration
	MaxWait         time.Duration
	MaxAttempts     int
}

// CLOCheckPolicy starts at 1s and adds 500ms per read up to 5s, for at most 5 minutes.
func CLOCheckPolicy() Policy {
	return Policy{
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		Step:            500 * time.Millisecond,
		MaxWait:         5 * time.Minute,
	}
}

// SummaryPolicy polls every 5s, at most 60 times and for at most 5 minutes.
func SummaryPolicy() Policy {
	return Policy{
		InitialInterval: 5 * time.Second,
		MaxInterval:     5 * time.Second,
		MaxWait:         5 * time.Minute,
		MaxAttempts:     60,
	}
}

// IngestPolicy is used when a caller waits on document ingestion.
func IngestPolicy() Policy {
	return Policy{
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Step:            time.Second,
		MaxWait:         10 * time.Minute,
	}
}

// PolicyFromConfig overlays the non-zero fields of c on fallback.
func PolicyFromConfig(c config.PollPolicyConfig, fallback Policy) Policy {
	p := fallback
	if c.InitialInterval > 0 {
		p.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		p.MaxInterval = c.MaxInterval
	}
	if c.Step > 0 {
		p.Step = c.Step
	}
	if c.MaxWait > 0 {
		p.MaxWait = c.MaxWait
	}
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	return p
}

// Validate rejects policies that could poll forever or never sleep.
func (p Policy) Validate() error {
	switch {
	case p.MaxWait <= 0:
		return domain.NewValidationError("max_wait", "must be positive")
	case p.InitialInterval <= 0:
		return domain.NewValidationError("initial_interval", "must be positive")
	case p.MaxInterval < p.InitialInterval:
		return domain.NewValidationError("max_interval", fmt.Sprintf("must be at least initial_interval (%s)", p.InitialInterval))
	case p.Step < 0:
		return domain.NewValidationError("step", "must not be negative")
	case p.MaxAttempts < 0:
		return domain.NewValidationError("max_attempts", "must not be negative")
	}
	return nil
}

// next returns the interval that follows current.
func (p Policy) next(current time.Duration) time.Duration {
	n := current + p.Step
	if n > p.MaxInterval {
		return p.MaxInterval
	}
	return n
}

func (p Policy) attemptsExhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}
