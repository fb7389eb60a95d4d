package drive

import (
	"context"
	"math/rand"
	"time"

	logx "publibot/pkg/logx"
)

// RetryPolicy bounds how transient store errors are retried.
type RetryPolicy struct {
	Max      int           // attempts, including the first
	Base     time.Duration // first backoff
	MaxDelay time.Duration
	Jitter   float64 // 0.2 = +-20%
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Max <= 0 {
		p.Max = 4
	}
	if p.Base <= 0 {
		p.Base = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.2
	}
	return p
}

// withRetry runs fn, retrying only transient failures with exponential
// backoff and jitter. The last error is returned when attempts run out.
func withRetry(ctx context.Context, log logx.Logger, p RetryPolicy, op string, fn func() error) error {
	p = p.withDefaults()

	delay := p.Base
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if classify(err) != KindTransient || attempt >= p.Max {
			return err
		}

		d := jitter(delay, p.Jitter)
		if !log.IsZero() {
			log.Warn("transient store error; retrying",
				logx.String("op", op),
				logx.Int("attempt", attempt),
				logx.Duration("backoff", d),
				logx.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	spread := float64(d) * frac
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
