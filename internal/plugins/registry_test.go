package plugins

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type stubPlugin struct {
	name     string
	specs    []Spec
	startErr error
	started  int
	stopped  int
}

func (p *stubPlugin) Name() string     { return p.name }
func (p *stubPlugin) Commands() []Spec { return p.specs }

func (p *stubPlugin) Start(ctx context.Context) error {
	p.started++
	return p.startErr
}

func (p *stubPlugin) Stop() error {
	p.stopped++
	return nil
}

func noopHandler(ctx context.Context, inv *Invocation) {}

func specs(names ...string) []Spec {
	out := make([]Spec, 0, len(names))
	for _, n := range names {
		out = append(out, Spec{Name: n, Handler: noopHandler, Parameters: []string{"a", "b"}})
	}
	return out
}

func TestRegistry_Load(t *testing.T) {
	t.Run("registers commands and starts plugin", func(t *testing.T) {
		r := NewRegistry(nil, nil)
		p := &stubPlugin{name: "core", specs: specs("echo")}
		if err := r.Load(p); err != nil {
			t.Fatalf("load: %v", err)
		}
		if _, ok := r.Lookup("echo"); !ok {
			t.Error("echo not registered")
		}
		if state, _ := r.PluginState("core"); state != StateRunning {
			t.Errorf("state = %v, want running", state)
		}
		if p.started != 1 {
			t.Errorf("started = %d", p.started)
		}
	})

	t.Run("duplicate command rejected", func(t *testing.T) {
		r := NewRegistry(nil, nil)
		if err := r.Load(&stubPlugin{name: "a", specs: specs("echo")}); err != nil {
			t.Fatalf("load a: %v", err)
		}
		if err := r.Load(&stubPlugin{name: "b", specs: specs("echo")}); err == nil {
			t.Error("expected duplicate command error")
		}
	})

	t.Run("metadata filters disabled commands and parameters", func(t *testing.T) {
		meta := NewMetadataStore(map[string]Metadata{
			"core": {
				DisabledCommands:   []string{"hidden"},
				DisabledParameters: []string{"echo.b"},
			},
		})
		r := NewRegistry(meta, nil)
		if err := r.Load(&stubPlugin{name: "core", specs: specs("echo", "hidden")}); err != nil {
			t.Fatalf("load: %v", err)
		}
		if _, ok := r.Lookup("hidden"); ok {
			t.Error("disabled command registered")
		}
		d, _ := r.Lookup("echo")
		if d.Declared("b") {
			t.Error("disabled parameter declared")
		}
		if !d.Declared("a") {
			t.Error("parameter a should remain declared")
		}
	})
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry(nil, nil)
	p := &stubPlugin{name: "core", specs: specs("echo")}
	if err := r.Load(p); err != nil {
		t.Fatalf("load: %v", err)
	}

	t.Run("start while running is a no-op", func(t *testing.T) {
		if err := r.Start("core"); err != nil {
			t.Errorf("start: %v", err)
		}
		if p.started != 1 {
			t.Errorf("started = %d, want 1", p.started)
		}
	})

	t.Run("stop cancels the lifecycle context", func(t *testing.T) {
		ctx := r.Context("core")
		if err := r.Stop("core"); err != nil {
			t.Fatalf("stop: %v", err)
		}
		select {
		case <-ctx.Done():
		default:
			t.Error("context not cancelled after stop")
		}
		if state, _ := r.PluginState("core"); state != StateStopped {
			t.Errorf("state = %v, want stopped", state)
		}
	})

	t.Run("stop while stopped is a no-op", func(t *testing.T) {
		before := p.stopped
		if err := r.Stop("core"); err != nil {
			t.Errorf("stop: %v", err)
		}
		if p.stopped != before {
			t.Errorf("stopped = %d, want %d", p.stopped, before)
		}
	})

	t.Run("restart clears cancellation", func(t *testing.T) {
		if err := r.Restart("core"); err != nil {
			t.Fatalf("restart: %v", err)
		}
		select {
		case <-r.Context("core").Done():
			t.Error("fresh context already cancelled")
		default:
		}
	})

	t.Run("restart reports partial failure", func(t *testing.T) {
		p.startErr = fmt.Errorf("bad init")
		err := r.Restart("core")
		if err == nil {
			t.Fatal("expected restart error")
		}
		if want := "stopped but start failed"; !strings.Contains(err.Error(), want) {
			t.Errorf("err = %v, want mention of %q", err, want)
		}
	})

	t.Run("unknown plugin", func(t *testing.T) {
		if err := r.Start("ghost"); err == nil {
			t.Error("expected error for unknown plugin")
		}
	})
}
