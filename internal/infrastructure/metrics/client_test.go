package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dzpanel/dzpanel/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.MetricsConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWrite_NotConnectedIsNoop(t *testing.T) {
	c := &Client{}
	// Must not panic with no write API behind it.
	c.WriteStatusSample(true, 5, time.Minute, 1234)
	c.WriteLifecycleEvent("started", 1234)
	c.WritePoint("server_status", nil, map[string]interface{}{"running": 1})
	c.Flush()
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSampler_DefaultInterval(t *testing.T) {
	s := NewSampler(&Client{}, 0, func() Sample { return Sample{} })
	if s.interval != DefaultSampleInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultSampleInterval)
	}
}

func TestSampler_StopsOnCancel(t *testing.T) {
	calls := 0
	s := NewSampler(&Client{}, 10*time.Millisecond, func() Sample {
		calls++
		return Sample{Running: true, Players: 3}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop on context cancel")
	}
	if calls == 0 {
		t.Error("sampler never sampled")
	}
}
