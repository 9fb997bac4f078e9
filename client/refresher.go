package client

import (
	"context"
	"errors"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Refresher keeps one device credential fresh. Every new credential is
// passed to OnToken, which should swap it into the device without touching
// calls in progress.
type Refresher struct {
	Source  Fetcher
	Request voicegrant.CredentialRequest
	OnToken func(*Credential)
	// OnError is told about every failed fetch. Optional.
	OnError func(error)

	// RefreshMargin is how long before ExpiresAt the next fetch starts.
	RefreshMargin time.Duration
	MinBackoff    time.Duration
	MaxBackoff    time.Duration
	// Jitter is the randomization factor applied to each retry wait, so
	// devices that lost the server together do not retry in lockstep. Zero
	// means backoff.DefaultRandomizationFactor; negative disables it.
	Jitter float64

	// Logger is optional; nil discards.
	Logger *zerolog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Run fetches until ctx is done. It returns ctx.Err() on cancellation, or
// ErrIdentityRequired immediately since retrying cannot fix it.
func (r *Refresher) Run(ctx context.Context) error {
	if r.Source == nil || r.OnToken == nil {
		return errors.New("client: Refresher needs Source and OnToken")
	}

	now := r.now
	if now == nil {
		now = time.Now
	}
	after := r.after
	if after == nil {
		after = time.After
	}

	margin := r.RefreshMargin
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	minBackoff := r.MinBackoff
	if minBackoff <= 0 {
		minBackoff = defaultMinBackoff
	}
	maxBackoff := r.MaxBackoff
	if maxBackoff < minBackoff {
		maxBackoff = defaultMaxBackoff
		if maxBackoff < minBackoff {
			maxBackoff = minBackoff
		}
	}

	logger := zerolog.Nop()
	if r.Logger != nil {
		logger = *r.Logger
	}

	retry := &backoff.ExponentialBackOff{
		InitialInterval:     minBackoff,
		RandomizationFactor: jitterFactor(r.Jitter),
		Multiplier:          2,
		MaxInterval:         maxBackoff,
	}
	retry.Reset()

	for {
		var wait time.Duration

		cred, err := r.Source.Fetch(ctx, r.Request)
		switch {
		case err == nil:
			retry.Reset()
			r.OnToken(cred)
			wait = cred.ExpiresAt.Sub(now()) - margin
			if wait < minBackoff {
				wait = minBackoff
			}
			logger.Debug().
				Str("identity", r.Request.Identity).
				Time("expires_at", cred.ExpiresAt).
				Dur("next_refresh", wait).
				Msg("credential refreshed")
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrIdentityRequired):
			return err
		default:
			if r.OnError != nil {
				r.OnError(err)
			}
			wait = retry.NextBackOff()
			logger.Warn().Err(err).Dur("retry_in", wait).Msg("credential refresh failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-after(wait):
		}
	}
}

func jitterFactor(j float64) float64 {
	switch {
	case j == 0:
		return backoff.DefaultRandomizationFactor
	case j < 0:
		return 0
	case j > 1:
		return 1
	default:
		return j
	}
}
