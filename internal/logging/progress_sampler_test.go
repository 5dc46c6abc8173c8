package logging

import (
	"testing"
	"time"
)

func TestNewProgressSamplerDefaults(t *testing.T) {
	if s := NewProgressSampler(0); s.bucketSize != 10 || s.heartbeat != 0 {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s := NewProgressSampler(25, WithHeartbeat(time.Minute)); s.bucketSize != 25 || s.heartbeat != time.Minute {
		t.Errorf("unexpected sampler state %+v", s)
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "docker/data") {
		t.Error("nil sampler logs everything")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{12, true},
		{19, false},
		{100, true},
		{100, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "docker/data"); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerLabelChangeRestartsBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(80, "docker/data")

	if !s.ShouldLog(0, " docker/volumes ") {
		t.Error("label change should log")
	}
	if s.lastLabel != "docker/volumes" {
		t.Errorf("lastLabel = %q, want trimmed label", s.lastLabel)
	}
	if !s.ShouldLog(10, "docker/volumes") {
		t.Error("bucket should restart after label change")
	}
}

func TestProgressSamplerHeartbeat(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	s := NewProgressSampler(10, WithHeartbeat(5*time.Minute))
	s.now = func() time.Time { return clock }

	if !s.ShouldLog(0, "docker/data") {
		t.Fatal("first event should log")
	}
	clock = clock.Add(4 * time.Minute)
	if s.ShouldLog(1, "docker/data") {
		t.Fatal("no heartbeat before the interval")
	}
	clock = clock.Add(time.Minute)
	if !s.ShouldLog(1, "docker/data") {
		t.Fatal("heartbeat should log a stalled transfer")
	}
	clock = clock.Add(time.Minute)
	if s.ShouldLog(2, "docker/data") {
		t.Fatal("heartbeat restarts after each kept line")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(-1, "x") {
		t.Error("first label should log even with unknown percent")
	}
	if s.ShouldLog(-1, "x") {
		t.Error("unknown percent should not trigger bucket logging")
	}
	s.Reset()
	if !s.ShouldLog(-1, "x") {
		t.Error("reset should allow the label to log again")
	}
}
