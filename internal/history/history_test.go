package history

import (
	"testing"

	"github.com/voxbotio/voxbot/internal/commands"
)

func cmd(name string) *commands.Command {
	return commands.NewCommand(name, "", []string{"a=1"}, 1, 2, commands.Unset)
}

func TestHistory_CapacityAndOrder(t *testing.T) {
	h := New(3)
	for _, name := range []string{"one", "two", "three"} {
		if !h.Add(cmd(name)) {
			t.Fatalf("add %q failed below limit", name)
		}
	}

	t.Run("add past limit fails without eviction", func(t *testing.T) {
		if h.Add(cmd("four")) {
			t.Error("add succeeded past limit")
		}
		if h.Len() != 3 {
			t.Errorf("Len = %d, want 3", h.Len())
		}
	})

	t.Run("last N is most recent first", func(t *testing.T) {
		got := h.LastN(2)
		if len(got) != 2 || got[0].Name != "three" || got[1].Name != "two" {
			t.Errorf("LastN(2) = %v", got)
		}
	})

	t.Run("entries are deep copies", func(t *testing.T) {
		src := cmd("mut")
		h := New(1)
		h.Add(src)
		src.Parameters[0] = "changed"
		if h.LastN(1)[0].Parameters[0] != "a=1" {
			t.Error("history entry shares state with source command")
		}
	})
}

func TestHistory_RemoveAt(t *testing.T) {
	h := New(3)
	h.Add(cmd("one"))
	h.Add(cmd("two"))

	if !h.RemoveAt(0) {
		t.Fatal("RemoveAt(0) failed")
	}
	if h.Len() != 1 || h.LastN(1)[0].Name != "two" {
		t.Errorf("unexpected state after removal: len=%d", h.Len())
	}
	if h.RemoveAt(5) {
		t.Error("RemoveAt out of range succeeded")
	}
}
