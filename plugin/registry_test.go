package plugin_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/plugin"
	"github.com/xraph/iptu/types"
)

type forwardSpy struct {
	name string
	err  error

	mu    sync.Mutex
	calls []types.Amount
}

func (s *forwardSpy) Name() string { return s.name }

func (s *forwardSpy) OnFundsForwarded(_ context.Context, _ identity.Identity, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, amount)
	return s.err
}

func (s *forwardSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type nameOnly struct{}

func (nameOnly) Name() string { return "name-only" }

type slowShutdown struct{ release chan struct{} }

func (slowShutdown) Name() string { return "slow" }

func (s slowShutdown) OnShutdown(context.Context) error {
	<-s.release
	return nil
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.DiscardHandler))
}

func TestRegistry_Register(t *testing.T) {
	r := newRegistry()

	if err := r.Register(&forwardSpy{name: "spy"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(nameOnly{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&forwardSpy{name: "spy"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}

	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
	if r.Get("spy") == nil {
		t.Error("Get(spy) = nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
	if got := len(r.List()); got != 2 {
		t.Errorf("List returned %d plugins, want 2", got)
	}
}

func TestRegistry_EmitContinuesAfterFailure(t *testing.T) {
	r := newRegistry()
	failing := &forwardSpy{name: "failing", err: errors.New("boom")}
	healthy := &forwardSpy{name: "healthy"}
	_ = r.Register(failing)
	_ = r.Register(healthy)
	_ = r.Register(nameOnly{})

	r.EmitFundsForwarded(context.Background(), "sefaz", 250)

	if failing.count() != 1 || healthy.count() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.count(), healthy.count())
	}
}

func TestRegistry_Timeout(t *testing.T) {
	r := newRegistry().WithTimeout(10 * time.Millisecond)
	s := slowShutdown{release: make(chan struct{})}
	defer close(s.release)
	_ = r.Register(s)

	done := make(chan struct{})
	go func() {
		r.EmitShutdown(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitShutdown blocked past the plugin timeout")
	}
}
