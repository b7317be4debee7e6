package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/observability"
	"github.com/voxbotio/voxbot/internal/plugins"
	"github.com/voxbotio/voxbot/internal/storage"
	"github.com/voxbotio/voxbot/internal/transport"
)

type harness struct {
	svc     *Service
	store   *storage.MemoryStore
	reg     *plugins.Registry
	conn    *transport.FakeConnection
	issuer  *transport.FakeUser
	lobby   *transport.FakeChannel
	console *bytes.Buffer
	logPath string
}

func newHarness(t *testing.T, fileRedact, consoleRedact observability.RedactFlags) *harness {
	t.Helper()
	ctx := context.Background()

	parser, err := commands.NewParser("!")
	if err != nil {
		t.Fatalf("parser: %v", err)
	}

	store := storage.NewMemoryStore()
	if err := store.UpsertUser(ctx, &storage.User{Name: "alice", Groups: []string{"default"}}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	conn := transport.NewFakeConnection()
	h := &harness{
		store:   store,
		conn:    conn,
		issuer:  conn.AddUser(1, "alice"),
		lobby:   conn.AddChannel(3, "lobby"),
		console: &bytes.Buffer{},
		logPath: filepath.Join(t.TempDir(), "commands.log"),
	}

	sinks, err := observability.NewSinks(observability.SinkConfig{
		ConsoleOut:    h.console,
		FilePath:      h.logPath,
		FileRedact:    fileRedact,
		ConsoleRedact: consoleRedact,
	})
	if err != nil {
		t.Fatalf("sinks: %v", err)
	}
	t.Cleanup(func() { sinks.Close() })

	meta := plugins.NewMetadataStore(nil)
	h.reg = plugins.NewRegistry(meta, sinks.Console)

	h.svc, err = NewService(Deps{
		Parser:        parser,
		Store:         store,
		Registry:      h.reg,
		Meta:          meta,
		Conn:          conn,
		Sinks:         sinks,
		Metrics:       observability.NewMetrics(prometheus.NewRegistry()),
		QueueCapacity: 8,
		HistoryLimit:  8,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	core := plugins.NewCorePlugin(h.svc.History(), "test", h.reg.Plugins)
	if err := h.reg.Load(core); err != nil {
		t.Fatalf("load core: %v", err)
	}
	for _, name := range h.reg.Commands() {
		err := store.UpsertCommand(ctx, &storage.CommandRecord{
			Name: name, Plugin: "core", Groups: []string{"default"},
		})
		if err != nil {
			t.Fatalf("seed command %s: %v", name, err)
		}
	}
	return h
}

func channelEvent(msg string) *commands.TextEvent {
	return &commands.TextEvent{Message: msg, Actor: 1, ChannelIDs: []int{3}}
}

func TestService_ProcessText(t *testing.T) {
	ctx := context.Background()

	t.Run("nil event is a processing error", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		var perr *ProcessingError
		if err := h.svc.ProcessText(ctx, nil); !errors.As(err, &perr) {
			t.Errorf("err = %v, want ProcessingError", err)
		}
	})

	t.Run("plain chat is ignored", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		if err := h.svc.ProcessText(ctx, channelEvent("hello everyone")); err != nil {
			t.Fatalf("err: %v", err)
		}
		if got := h.lobby.Sent(); len(got) != 0 {
			t.Errorf("lobby got %v", got)
		}
	})

	t.Run("echo routes back to the originating channel", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		if err := h.svc.ProcessText(ctx, channelEvent("!echo hi there")); err != nil {
			t.Fatalf("err: %v", err)
		}
		if got := h.lobby.Sent(); len(got) != 1 || got[0] != "hi there" {
			t.Errorf("lobby got %v", got)
		}
	})

	t.Run("denied actor gets a notice and no execution", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		h.store.UpsertCommand(ctx, &storage.CommandRecord{
			Name: "echo", Plugin: "core", Groups: []string{"admin"},
		})
		if err := h.svc.ProcessText(ctx, channelEvent("!echo secret")); err != nil {
			t.Fatalf("err: %v", err)
		}
		if got := h.lobby.Sent(); len(got) != 0 {
			t.Errorf("lobby got %v, want no execution output", got)
		}
		got := h.issuer.Sent()
		if len(got) != 1 || !strings.Contains(got[0], "not permitted") {
			t.Errorf("issuer got %v", got)
		}
	})

	t.Run("unknown actor record is a processing error", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		h.conn.AddUser(9, "mallory") // connected but not in storage
		evt := &commands.TextEvent{Message: "!echo hi", Actor: 9, ChannelIDs: []int{3}}
		var perr *ProcessingError
		if err := h.svc.ProcessText(ctx, evt); !errors.As(err, &perr) {
			t.Errorf("err = %v, want ProcessingError", err)
		}
	})

	t.Run("stopped plugin refuses execution", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		if err := h.reg.Stop("core"); err != nil {
			t.Fatalf("stop: %v", err)
		}
		if err := h.svc.ProcessText(ctx, channelEvent("!echo hi")); err != nil {
			t.Fatalf("err: %v", err)
		}
		got := h.issuer.Sent()
		if len(got) != 1 || !strings.Contains(got[0], "not running") {
			t.Errorf("issuer got %v", got)
		}
	})

	t.Run("undeclared parameter fast-rejects with usage", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		if err := h.svc.ProcessText(ctx, channelEvent("!echo.bogus=1 hi")); err != nil {
			t.Fatalf("err: %v", err)
		}
		got := h.issuer.Sent()
		if len(got) != 1 || !strings.Contains(got[0], "usage") {
			t.Errorf("issuer got %v", got)
		}
	})

	t.Run("executed commands land in history", func(t *testing.T) {
		h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
		if err := h.svc.ProcessText(ctx, channelEvent("!echo one")); err != nil {
			t.Fatalf("err: %v", err)
		}
		if err := h.svc.ProcessText(ctx, channelEvent("!version")); err != nil {
			t.Fatalf("err: %v", err)
		}
		last := h.svc.History().LastN(2)
		if len(last) != 2 || last[0].Name != "version" || last[1].Name != "echo" {
			t.Errorf("history = %v", last)
		}
	})
}

func TestService_GenericAliasExpansion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
	err := h.store.UpsertAlias(ctx, &storage.Alias{
		Name: "greet", Command: "echo hello|echo bye", IsGeneric: true,
	})
	if err != nil {
		t.Fatalf("seed alias: %v", err)
	}

	if err := h.svc.ProcessText(ctx, channelEvent("!greet")); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := h.lobby.Sent()
	if len(got) != 2 || got[0] != "hello" || got[1] != "bye" {
		t.Errorf("lobby got %v", got)
	}
	if h.svc.History().Len() != 2 {
		t.Errorf("history len = %d, want 2 independently processed sub-commands", h.svc.History().Len())
	}
}

func TestService_NonGenericAlias(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
	if err := h.store.UpsertAlias(ctx, &storage.Alias{Name: "v", Command: "version"}); err != nil {
		t.Fatalf("seed alias: %v", err)
	}

	if err := h.svc.ProcessText(ctx, channelEvent("!v")); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := h.lobby.Sent()
	if len(got) != 1 || !strings.Contains(got[0], "voxbot") {
		t.Errorf("lobby got %v", got)
	}
}

func TestService_RedactionIndependence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		observability.RedactFlags{Command: true}, // file sink scrubs the command
		observability.RedactFlags{},              // console keeps it
	)

	if err := h.svc.ProcessText(ctx, channelEvent("!echo hi")); err != nil {
		t.Fatalf("err: %v", err)
	}

	if !strings.Contains(h.console.String(), "command=echo") {
		t.Errorf("console log missing unredacted command: %s", h.console.String())
	}
	fileData, err := os.ReadFile(h.logPath)
	if err != nil {
		t.Fatalf("read file sink: %v", err)
	}
	if strings.Contains(string(fileData), `"command":"echo"`) {
		t.Error("file sink leaked unredacted command name")
	}
	if !strings.Contains(string(fileData), observability.Redacted) {
		t.Errorf("file sink missing redaction marker: %s", fileData)
	}
}

type stubPlugin struct {
	name  string
	specs []plugins.Spec
}

func (p *stubPlugin) Name() string             { return p.name }
func (p *stubPlugin) Commands() []plugins.Spec { return p.specs }

// loadStubPlugin registers extra commands after the harness seeding pass.
// Names listed in seed get a command record; the rest stay unpersisted.
func loadStubPlugin(t *testing.T, h *harness, p *stubPlugin, seed ...string) {
	t.Helper()
	if err := h.reg.Load(p); err != nil {
		t.Fatalf("load %s: %v", p.name, err)
	}
	for _, name := range seed {
		err := h.store.UpsertCommand(context.Background(), &storage.CommandRecord{
			Name: name, Plugin: p.name, Groups: []string{"default"},
		})
		if err != nil {
			t.Fatalf("seed command %s: %v", name, err)
		}
	}
}

func TestService_HandlerPanicContained(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
	loadStubPlugin(t, h, &stubPlugin{
		name: "trouble",
		specs: []plugins.Spec{{
			Name: "boom",
			Handler: func(ctx context.Context, inv *plugins.Invocation) {
				panic("handler bug")
			},
		}},
	}, "boom")

	if err := h.svc.ProcessText(ctx, channelEvent("!boom")); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := h.issuer.Sent()
	if len(got) != 1 || !strings.Contains(got[0], "failed unexpectedly") {
		t.Errorf("issuer got %v", got)
	}

	// The loop must keep serving after the contained panic.
	if err := h.svc.ProcessText(ctx, channelEvent("!echo still here")); err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := h.lobby.Sent(); len(got) != 1 || got[0] != "still here" {
		t.Errorf("lobby got %v", got)
	}
}

func TestService_AbortedDrainDiscardsLeftovers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})
	// Registered but never persisted, so authorization hard-fails.
	loadStubPlugin(t, h, &stubPlugin{
		name: "trouble",
		specs: []plugins.Spec{{
			Name:    "ghost",
			Handler: func(ctx context.Context, inv *plugins.Invocation) {},
		}},
	})
	err := h.store.UpsertAlias(ctx, &storage.Alias{
		Name: "pair", Command: "ghost x|echo two", IsGeneric: true,
	})
	if err != nil {
		t.Fatalf("seed alias: %v", err)
	}

	var perr *ProcessingError
	if err := h.svc.ProcessText(ctx, channelEvent("!pair")); !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProcessingError", err)
	}

	// The sibling sub-command must not leak into the next event's drain.
	if err := h.svc.ProcessText(ctx, channelEvent("!version")); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := h.lobby.Sent()
	if len(got) != 1 || !strings.Contains(got[0], "voxbot") {
		t.Errorf("lobby got %v, want only the version reply", got)
	}
}

func TestService_ExclusiveParameters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, observability.RedactFlags{}, observability.RedactFlags{})

	if err := h.svc.ProcessText(ctx, channelEvent("!history.count=2.clear")); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := h.issuer.Sent()
	if len(got) != 1 || !strings.Contains(got[0], "mutually exclusive") {
		t.Errorf("issuer got %v", got)
	}
}
