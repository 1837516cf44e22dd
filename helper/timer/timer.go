package timer

import (
	"context"
	"math/rand"
	"time"

	"github.com/lthibault/jitterbug"

	log "github.com/sirupsen/logrus"
)

type Interval struct {
	Duration time.Duration
	Jitter   time.Duration
}

type boundedJitter struct {
	MaxJitter time.Duration
}

func (j boundedJitter) Jitter(d time.Duration) time.Duration {
	if j.MaxJitter >= d {
		log.Fatal("boundedJitter: MaxJitter is greater than duration")
	}

	if j.MaxJitter == 0 {
		return d
	}

	return d + (time.Duration(rand.Int63n(int64(2*j.MaxJitter))) - j.MaxJitter)
}

// RunWithTicker runs f on a jittered interval until the context is
// cancelled or f returns an error. The jitter desynchronizes periodic
// bursts across the overlay.
func RunWithTicker(ctx context.Context, name string, interval *Interval, f func(ctx context.Context) error) error {
	j := jitterbug.New(interval.Duration, &boundedJitter{MaxJitter: interval.Jitter})
	defer j.Stop()

	log.Debugf("RunWithTicker: running %s every %v (jitter %v)", name, interval.Duration, interval.Jitter)

	for {
		select {
		case <-ctx.Done():
			log.Debugf("RunWithTicker: context cancelled for %s", name)
			return ctx.Err()
		case <-j.C:
			if err := f(ctx); err != nil {
				log.Errorf("RunWithTicker: %s returned error: %v", name, err)
				return err
			}
		}
	}
}
