package commands

import (
	"reflect"
	"testing"
)

func TestNewParser(t *testing.T) {
	t.Run("empty prefix rejected", func(t *testing.T) {
		if _, err := NewParser(""); err == nil {
			t.Error("expected error for empty prefix")
		}
	})

	t.Run("prefix retained", func(t *testing.T) {
		p, err := NewParser("!")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Prefix() != "!" {
			t.Errorf("prefix = %q, want %q", p.Prefix(), "!")
		}
	})
}

func TestParser_Parse(t *testing.T) {
	p, err := NewParser("!")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}

	evt := func(msg string) TextEvent {
		return TextEvent{Message: msg, Actor: 7, ChannelIDs: []int{3}}
	}

	t.Run("empty message", func(t *testing.T) {
		if got := p.Parse(evt("   ")); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("plain chat line", func(t *testing.T) {
		got := p.Parse(evt("  hello there  "))
		if got == nil {
			t.Fatal("expected command")
		}
		if got.Name != "" {
			t.Errorf("Name = %q, want empty", got.Name)
		}
		if got.Message != "hello there" {
			t.Errorf("Message = %q, want %q", got.Message, "hello there")
		}
	})

	t.Run("full invocation", func(t *testing.T) {
		got := p.Parse(evt("!foo.bar.baz=1 hello world"))
		if got.Name != "foo" {
			t.Errorf("Name = %q, want foo", got.Name)
		}
		if want := []string{"bar", "baz=1"}; !reflect.DeepEqual(got.Parameters, want) {
			t.Errorf("Parameters = %v, want %v", got.Parameters, want)
		}
		if got.Message != "hello world" {
			t.Errorf("Message = %q, want %q", got.Message, "hello world")
		}
		if got.Actor != 7 || got.ChannelID != 3 {
			t.Errorf("actor/channel = %d/%d, want 7/3", got.Actor, got.ChannelID)
		}
	})

	t.Run("lone prefix", func(t *testing.T) {
		got := p.Parse(evt("!"))
		if got == nil {
			t.Fatal("expected command")
		}
		if got.Name != "" {
			t.Errorf("Name = %q, want empty", got.Name)
		}
	})

	t.Run("empty parameter tags dropped", func(t *testing.T) {
		got := p.Parse(evt("!foo..bar. body"))
		if want := []string{"bar"}; !reflect.DeepEqual(got.Parameters, want) {
			t.Errorf("Parameters = %v, want %v", got.Parameters, want)
		}
	})

	t.Run("no body", func(t *testing.T) {
		got := p.Parse(evt("!foo.bar"))
		if got.Name != "foo" || got.Message != "" {
			t.Errorf("got Name=%q Message=%q", got.Name, got.Message)
		}
	})

	t.Run("ids default to unset", func(t *testing.T) {
		got := p.Parse(TextEvent{Message: "!foo", Actor: Unset})
		if got.ChannelID != Unset || got.SessionID != Unset {
			t.Errorf("ids = %d/%d, want unset", got.ChannelID, got.SessionID)
		}
	})
}

func TestCommand_IsPrivate(t *testing.T) {
	t.Run("session only is private", func(t *testing.T) {
		c := NewCommand("x", "", nil, 1, Unset, 42)
		if !c.IsPrivate() {
			t.Error("expected private")
		}
	})

	t.Run("channel only is public", func(t *testing.T) {
		c := NewCommand("x", "", nil, 1, 3, Unset)
		if c.IsPrivate() {
			t.Error("expected public")
		}
	})

	t.Run("both set: channel wins", func(t *testing.T) {
		c := NewCommand("x", "", nil, 1, 3, 42)
		if c.IsPrivate() {
			t.Error("expected public when both ids supplied")
		}
		if c.SessionID != Unset {
			t.Errorf("SessionID = %d, want normalized to unset", c.SessionID)
		}
	})
}

func TestCommand_Clone(t *testing.T) {
	orig := NewCommand("x", "body", []string{"a=1"}, 1, 2, Unset)
	dup := orig.Clone()
	dup.Parameters[0] = "mutated"
	dup.Name = "y"
	if orig.Parameters[0] != "a=1" || orig.Name != "x" {
		t.Error("clone shares state with original")
	}
}
