package testsupport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"relocate/internal/fileutil"
)

// Events records the order of side effects across fakes.
type Events struct {
	mu   sync.Mutex
	list []string
}

// Add appends an event.
func (e *Events) Add(event string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, event)
}

// List returns a copy of the recorded events.
func (e *Events) List() []string {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

// FakeServices implements a service controller in memory. Units are active
// until stopped. StayDown keeps units inactive after Start.
type FakeServices struct {
	Events   *Events
	StopErr  error
	StartErr error
	StayDown bool

	mu      sync.Mutex
	stopped map[string]bool
}

func (f *FakeServices) Stop(_ context.Context, units []string) error {
	f.Events.Add("stop")
	if f.StopErr != nil {
		return f.StopErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped == nil {
		f.stopped = map[string]bool{}
	}
	for _, unit := range units {
		f.stopped[unit] = true
	}
	return nil
}

func (f *FakeServices) Start(_ context.Context, units []string) error {
	f.Events.Add("start")
	if f.StartErr != nil {
		return f.StartErr
	}
	if f.StayDown {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, unit := range units {
		delete(f.stopped, unit)
	}
	return nil
}

func (f *FakeServices) Active(_ context.Context, units []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, unit := range units {
		if f.stopped[unit] {
			return false, nil
		}
	}
	return true, nil
}

// FakeDataRoot reports a fixed data root.
type FakeDataRoot struct {
	Root  string
	Err   error
	Calls int
}

func (f *FakeDataRoot) DataRoot(context.Context, []string) (string, error) {
	f.Calls++
	return f.Root, f.Err
}

// FakeSyncer copies regular files from src to dst so destination sizes are
// realistic. Hook runs before the copy and can fail it.
type FakeSyncer struct {
	Events *Events
	Hook   func(ctx context.Context, label string) error
	Labels []string
}

func (f *FakeSyncer) Sync(ctx context.Context, label, src, dst string) error {
	f.Events.Add("sync " + label)
	f.Labels = append(f.Labels, label)
	if f.Hook != nil {
		if err := f.Hook(ctx, label); err != nil {
			return err
		}
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fileutil.CopyFileVerified(path, target)
	})
}

// FakeGate answers confirmations with a fixed decision.
type FakeGate struct {
	Answer  bool
	Err     error
	Prompts []string
}

func (f *FakeGate) Confirm(ctx context.Context, prompt string) (bool, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.Err != nil {
		return false, f.Err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.Answer, nil
}

// ErrFake is a generic failure for fakes.
var ErrFake = errors.New("fake failure")
