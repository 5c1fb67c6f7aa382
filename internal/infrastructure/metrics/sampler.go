package metrics

import (
	"context"
	"time"
)

// DefaultSampleInterval is used when the configured interval is zero.
const DefaultSampleInterval = 30 * time.Second

// Sample is one status observation handed to the sampler.
type Sample struct {
	Running bool
	Players int
	Uptime  time.Duration
	PID     int
}

// Sampler periodically writes status samples until its context is cancelled.
type Sampler struct {
	client   *Client
	interval time.Duration
	source   func() Sample
}

// NewSampler creates a sampler. source is called once per tick.
func NewSampler(client *Client, interval time.Duration, source func() Sample) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		client:   client,
		interval: interval,
		source:   source,
	}
}

// Run blocks, sampling on the interval, until ctx is cancelled. An initial
// sample is written immediately.
func (s *Sampler) Run(ctx context.Context) {
	s.write()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.write()
		}
	}
}

func (s *Sampler) write() {
	sample := s.source()
	s.client.WriteStatusSample(sample.Running, sample.Players, sample.Uptime, sample.PID)
}
