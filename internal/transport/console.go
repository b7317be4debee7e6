package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/voxbotio/voxbot/internal/commands"
)

// Console is a line-oriented local transport. It reads text events from an
// input stream and writes all outgoing messages to an output stream, which
// lets the bot run end-to-end without a live voice server.
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	operator *consoleUser
	self     *consoleUser
	channel  *consoleChannel
}

const (
	// ConsoleActorSession is the session id assigned to the console operator.
	ConsoleActorSession = 1

	// ConsoleChannelID is the id of the single console channel.
	ConsoleChannelID = 0
)

// NewConsole creates a console transport bound to the given streams.
func NewConsole(in io.Reader, out io.Writer, operatorName string, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		in:     in,
		out:    out,
		logger: logger.With("component", "console"),
	}
	c.operator = &consoleUser{name: operatorName, out: out}
	c.self = &consoleUser{name: "voxbot", out: out}
	c.channel = &consoleChannel{name: "root", out: out}
	return c
}

// Events reads lines from the input stream and emits one TextEvent per
// line until the stream ends or ctx is cancelled. The returned channel is
// closed when input is exhausted.
func (c *Console) Events(ctx context.Context) <-chan commands.TextEvent {
	events := make(chan commands.TextEvent)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			evt := commands.TextEvent{
				Message:    scanner.Text(),
				Actor:      ConsoleActorSession,
				ChannelIDs: []int{ConsoleChannelID},
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("console input closed", "error", err)
		}
	}()
	return events
}

func (c *Console) UserBySession(id int) (User, bool) {
	if id == ConsoleActorSession {
		return c.operator, true
	}
	return nil, false
}

func (c *Console) ChannelByID(id int) (Channel, bool) {
	if id == ConsoleChannelID {
		return c.channel, true
	}
	return nil, false
}

func (c *Console) Users() []User {
	return []User{c.operator, c.self}
}

func (c *Console) Channels() []Channel {
	return []Channel{c.channel}
}

func (c *Console) Self() User { return c.self }

func (c *Console) SelfChannel() (Channel, bool) { return c.channel, true }

type consoleUser struct {
	name string
	out  io.Writer
}

func (u *consoleUser) Name() string { return u.name }

func (u *consoleUser) SendTextMessage(text string) {
	fmt.Fprintf(u.out, "[->%s] %s\n", u.name, text)
}

type consoleChannel struct {
	name string
	out  io.Writer
}

func (c *consoleChannel) Name() string { return c.name }

func (c *consoleChannel) SendTextMessage(text string) {
	fmt.Fprintf(c.out, "[#%s] %s\n", c.name, text)
}
