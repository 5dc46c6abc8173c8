package svcctl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"

	"relocate/internal/logging"
	"relocate/internal/svcctl"
)

type stubDBus struct {
	units   map[string]dbus.UnitStatus
	calls   []string
	status  string
	listErr error
	closed  int
}

func newStubDBus(states map[string]string) *stubDBus {
	stub := &stubDBus{units: map[string]dbus.UnitStatus{}, status: "done"}
	for name, active := range states {
		load := "loaded"
		if active == "not-found" {
			load, active = "not-found", "inactive"
		}
		stub.units[name] = dbus.UnitStatus{Name: name, LoadState: load, ActiveState: active}
	}
	return stub
}

func (s *stubDBus) ListUnitsByNamesContext(_ context.Context, units []string) ([]dbus.UnitStatus, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]dbus.UnitStatus, 0, len(units))
	for _, name := range units {
		if st, ok := s.units[name]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubDBus) job(op, name string, ch chan<- string, active string) (int, error) {
	s.calls = append(s.calls, op+" "+name)
	if s.status == "done" {
		st := s.units[name]
		st.ActiveState = active
		s.units[name] = st
	}
	ch <- s.status
	return 1, nil
}

func (s *stubDBus) StartUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return s.job("start", name, ch, "active")
}

func (s *stubDBus) StopUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return s.job("stop", name, ch, "inactive")
}

func (s *stubDBus) Close() { s.closed++ }

func controller(stub *stubDBus) *svcctl.Systemd {
	return svcctl.NewSystemd(logging.NewNop(), svcctl.WithDBus(func(context.Context) (svcctl.DBusAPI, error) {
		return stub, nil
	}))
}

func TestStopSkipsStoppedUnits(t *testing.T) {
	stub := newStubDBus(map[string]string{"docker.socket": "active", "docker.service": "inactive"})
	ctl := controller(stub)

	if err := ctl.Stop(context.Background(), []string{"docker.socket", "docker.service"}); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if strings.Join(stub.calls, ",") != "stop docker.socket" {
		t.Fatalf("unexpected calls %v", stub.calls)
	}
	if stub.closed != 1 {
		t.Fatalf("expected connection to be closed once, got %d", stub.closed)
	}

	stub.calls = nil
	if err := ctl.Stop(context.Background(), []string{"docker.socket", "docker.service"}); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected stop to be idempotent, got %v", stub.calls)
	}
}

func TestStopToleratesUnknownUnits(t *testing.T) {
	stub := newStubDBus(map[string]string{"ghost.service": "not-found"})
	if err := controller(stub).Stop(context.Background(), []string{"ghost.service"}); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("unexpected calls %v", stub.calls)
	}
}

func TestStartRunsInReverseOrder(t *testing.T) {
	stub := newStubDBus(map[string]string{"docker.socket": "inactive", "docker.service": "inactive"})
	ctl := controller(stub)

	if err := ctl.Start(context.Background(), []string{"docker.socket", "docker.service"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if strings.Join(stub.calls, ",") != "start docker.service,start docker.socket" {
		t.Fatalf("unexpected calls %v", stub.calls)
	}
	active, err := ctl.Active(context.Background(), []string{"docker.socket", "docker.service"})
	if err != nil || !active {
		t.Fatalf("expected units active, got %v %v", active, err)
	}
}

func TestStartFailsForMissingUnit(t *testing.T) {
	stub := newStubDBus(map[string]string{"ghost.service": "not-found"})
	err := controller(stub).Start(context.Background(), []string{"ghost.service"})
	if err == nil || !strings.Contains(err.Error(), "unit not found") {
		t.Fatalf("expected unit not found, got %v", err)
	}
}

func TestJobFailureIsReported(t *testing.T) {
	stub := newStubDBus(map[string]string{"containerd.service": "inactive"})
	stub.status = "failed"
	err := controller(stub).Start(context.Background(), []string{"containerd.service"})
	if err == nil || !strings.Contains(err.Error(), `status "failed"`) {
		t.Fatalf("expected job failure, got %v", err)
	}
}

func TestActiveReportsInactiveUnit(t *testing.T) {
	stub := newStubDBus(map[string]string{"containerd.service": "failed"})
	active, err := controller(stub).Active(context.Background(), []string{"containerd.service"})
	if err != nil || active {
		t.Fatalf("expected inactive, got %v %v", active, err)
	}
}

func TestListErrorPropagates(t *testing.T) {
	stub := newStubDBus(nil)
	stub.listErr = errors.New("bus closed")
	if err := controller(stub).Stop(context.Background(), []string{"x.service"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConnectErrorPropagates(t *testing.T) {
	ctl := svcctl.NewSystemd(logging.NewNop(), svcctl.WithDBus(func(context.Context) (svcctl.DBusAPI, error) {
		return nil, errors.New("no bus")
	}))
	if _, err := ctl.Active(context.Background(), []string{"x.service"}); err == nil {
		t.Fatal("expected connect error")
	}
}
