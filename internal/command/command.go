package command

import (
	"context"
	"math/rand"
	"time"

	"github.com/authapp/zitadel/internal/crypto"
	"github.com/authapp/zitadel/internal/eventstore"
	"github.com/authapp/zitadel/internal/id"
	"github.com/authapp/zitadel/internal/telemetry/tracing"
	"github.com/authapp/zitadel/internal/zerrors"
)

// RetryConfig bounds the Command Engine's transparent retry of
// ConcurrencyConflict, spec.md §4.3 step 4: "default 3, with small
// jittered backoff".
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the choice recorded in DESIGN.md: 3
// attempts, 10-40ms jittered backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
}

// Commands is the Command Engine facade every aggregate's command
// methods hang off of.
type Commands struct {
	es             *eventstore.Eventstore
	idGenerator    id.Generator
	passwordHasher crypto.PasswordHasher
	encryption     crypto.EncryptionAlgorithm
	retry          RetryConfig
}

// NewCommands wires the Command Engine's dependencies: the Event Store
// it reads/writes, and the opaque services spec.md §6 names (id
// generation, password hashing, symmetric encryption).
func NewCommands(es *eventstore.Eventstore, idGenerator id.Generator, passwordHasher crypto.PasswordHasher, encryption crypto.EncryptionAlgorithm) *Commands {
	return &Commands{
		es:             es,
		idGenerator:    idGenerator,
		passwordHasher: passwordHasher,
		encryption:     encryption,
		retry:          DefaultRetryConfig(),
	}
}

// Result is what execute() returns to the caller per spec.md §4.3 step
// 5: the committed events, plus the position of the last one so a
// caller can implement wait_for_projection (spec.md §5, §6).
type Result struct {
	Events   []eventstore.Event
	Position eventstore.Position
}

// attempt is one pass of load-validate-produce-push; concrete command
// methods build one and hand it to pushWithRetry so a ConcurrencyConflict
// can reload a fresh write-model and retry the whole procedure, not just
// the append.
type attempt func(ctx context.Context) ([]eventstore.Event, error)

// pushWithRetry implements spec.md §4.3 step 4: push, and on
// ConcurrencyConflict retry the full procedure (including reloading the
// write-model) up to retry.MaxAttempts times with jittered backoff.
// Every other error -- Validation, PreconditionFailed,
// UniqueConstraintViolation -- surfaces immediately without retry.
func (c *Commands) pushWithRetry(ctx context.Context, do attempt) (result *Result, err error) {
	ctx, span := tracing.NewSpan(ctx)
	defer func() { span.EndWithError(err) }()

	var lastErr error
	for i := 0; i < c.retry.MaxAttempts; i++ {
		events, err := do(ctx)
		if err == nil {
			var pos eventstore.Position
			if len(events) > 0 {
				pos = events[len(events)-1].Position()
			}
			return &Result{Events: events, Position: pos}, nil
		}
		if !zerrors.IsConcurrencyConflict(err) {
			return nil, err
		}
		lastErr = err
		commandRetries.Inc()
		if i == c.retry.MaxAttempts-1 {
			break
		}
		if waitErr := c.backoff(ctx, i); waitErr != nil {
			return nil, waitErr
		}
	}
	commandRetriesExhausted.Inc()
	return nil, lastErr
}

func (c *Commands) backoff(ctx context.Context, attemptIndex int) error {
	delay := c.retry.BaseDelay * time.Duration(attemptIndex+1)
	if delay > c.retry.MaxDelay {
		delay = c.retry.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay/2) + 1))
	select {
	case <-time.After(delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
