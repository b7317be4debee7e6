// Package routing sends command output to its destinations.
//
// Output produced during an invocation is queued FIFO and drained to the
// destinations selected by reserved routing keywords in the invocation's
// parameter list (me, user, users, channel, channels, mychannel, broadcast,
// delay). When no keyword is present, output goes back to the issuer.
package routing

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/voxbotio/voxbot/internal/commands"
	"github.com/voxbotio/voxbot/internal/queue"
	"github.com/voxbotio/voxbot/internal/transport"
)

// Reserved routing keywords. These are never treated as business
// parameters of a command.
const (
	KeywordDelay     = "delay"
	KeywordBroadcast = "broadcast"
	KeywordMyChannel = "mychannel"
	KeywordChannel   = "channel"
	KeywordChannels  = "channels"
	KeywordUser      = "user"
	KeywordUsers     = "users"
	KeywordMe        = "me"
)

var reserved = map[string]struct{}{
	KeywordDelay:     {},
	KeywordBroadcast: {},
	KeywordMyChannel: {},
	KeywordChannel:   {},
	KeywordChannels:  {},
	KeywordUser:      {},
	KeywordUsers:     {},
	KeywordMe:        {},
}

// IsReserved reports whether a bare parameter name is a routing keyword.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// Entry is one queued output message bound to the command that produced it.
type Entry struct {
	Text    string
	Command *commands.Command
}

// DefaultOutputCapacity bounds a per-invocation output queue.
const DefaultOutputCapacity = 64

// Output is the per-invocation output-message queue. Resolvers and
// handlers queue text here; the pipeline drains it to the active
// destinations.
type Output struct {
	q *queue.Bounded[Entry]
}

// NewOutput creates an empty output queue.
func NewOutput() *Output {
	return &Output{q: queue.NewBounded[Entry](DefaultOutputCapacity)}
}

// Queue appends a message and reports whether it fit.
func (o *Output) Queue(text string, cmd *commands.Command) bool {
	return o.q.Enqueue(Entry{Text: text, Command: cmd})
}

// drainAll removes and returns all queued entries in FIFO order.
func (o *Output) drainAll() []Entry {
	out := make([]Entry, 0, o.q.Len())
	for {
		e, ok := o.q.Dequeue()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

// Len returns the number of queued entries.
func (o *Output) Len() int {
	return o.q.Len()
}

// Directives are the destinations extracted from an invocation's
// parameter tokens.
type Directives struct {
	Me        bool
	Broadcast bool
	MyChannel bool
	Users     []string // raw values from user=/users= tokens
	Channels  []string // raw values from channel=/channels= tokens
	Delay     time.Duration
}

// ParseDirectives extracts routing keywords from raw parameter tokens.
// A malformed delay value queues a warning to the issuer via out and is
// treated as no delay. When no keyword is present the issuer ("me") is the
// default destination.
func ParseDirectives(tokens []string, cmd *commands.Command, out *Output) Directives {
	var d Directives
	found := false
	for _, tok := range tokens {
		name, value, hasValue := strings.Cut(tok, "=")
		switch strings.ToLower(name) {
		case KeywordMe:
			d.Me = true
		case KeywordBroadcast:
			d.Broadcast = true
		case KeywordMyChannel:
			d.MyChannel = true
		case KeywordUser, KeywordUsers:
			d.Users = append(d.Users, splitList(value)...)
		case KeywordChannel, KeywordChannels:
			d.Channels = append(d.Channels, splitList(value)...)
		case KeywordDelay:
			if !hasValue {
				out.Queue("delay requires a value in seconds", cmd)
				continue
			}
			secs, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || secs < 0 {
				out.Queue("invalid delay value: "+value, cmd)
				continue
			}
			d.Delay = time.Duration(secs) * time.Second
		default:
			continue
		}
		found = true
	}
	if !found {
		d.Me = true
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Router resolves destinations against the live connection and delivers
// queued output. Sends are fire-and-forget.
type Router struct {
	conn   transport.Connection
	logger *slog.Logger

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewRouter creates a router over the given connection.
func NewRouter(conn transport.Connection, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		conn:   conn,
		logger: logger.With("component", "routing"),
		sleep:  time.Sleep,
	}
}

// Drain empties the output queue, sending every entry to every active
// destination. Unresolvable user or channel names warn the issuer and do
// not abort the remaining destinations.
func (r *Router) Drain(out *Output, d Directives) {
	entries := out.drainAll()
	if len(entries) == 0 {
		return
	}
	if d.Delay > 0 {
		r.sleep(d.Delay)
	}
	for _, e := range entries {
		r.send(e, d)
	}
}

func (r *Router) send(e Entry, d Directives) {
	if d.Me {
		r.toIssuer(e)
	}
	if d.Broadcast {
		for _, ch := range r.conn.Channels() {
			ch.SendTextMessage(e.Text)
		}
	}
	if d.MyChannel {
		if ch, ok := r.conn.SelfChannel(); ok {
			ch.SendTextMessage(e.Text)
		} else {
			r.warnIssuer(e.Command, "not currently in a channel")
		}
	}
	for _, name := range d.Users {
		if u, ok := r.userByName(name); ok {
			u.SendTextMessage(e.Text)
		} else {
			r.warnIssuer(e.Command, "unknown user: "+name)
		}
	}
	for _, name := range d.Channels {
		if ch, ok := r.channelByName(name); ok {
			ch.SendTextMessage(e.Text)
		} else {
			r.warnIssuer(e.Command, "unknown channel: "+name)
		}
	}
}

// toIssuer replies to the command's origin: privately to the actor for
// private messages, otherwise to the originating channel.
func (r *Router) toIssuer(e Entry) {
	cmd := e.Command
	if cmd == nil {
		return
	}
	if !cmd.IsPrivate() && cmd.ChannelID > commands.Unset {
		if ch, ok := r.conn.ChannelByID(cmd.ChannelID); ok {
			ch.SendTextMessage(e.Text)
			return
		}
	}
	if u, ok := r.conn.UserBySession(cmd.Actor); ok {
		u.SendTextMessage(e.Text)
		return
	}
	r.logger.Warn("issuer unreachable", "actor", cmd.Actor)
}

// WarnIssuer sends a warning directly to the actor of cmd.
func (r *Router) WarnIssuer(cmd *commands.Command, text string) {
	r.warnIssuer(cmd, text)
}

func (r *Router) warnIssuer(cmd *commands.Command, text string) {
	if cmd == nil {
		return
	}
	if u, ok := r.conn.UserBySession(cmd.Actor); ok {
		u.SendTextMessage(text)
		return
	}
	r.logger.Warn("could not deliver warning", "actor", cmd.Actor, "text", text)
}

// normalizeName lowercases and maps underscores to spaces for lookup.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}

func (r *Router) userByName(name string) (transport.User, bool) {
	want := normalizeName(name)
	for _, u := range r.conn.Users() {
		if strings.ToLower(u.Name()) == want {
			return u, true
		}
	}
	return nil, false
}

func (r *Router) channelByName(name string) (transport.Channel, bool) {
	want := normalizeName(name)
	for _, ch := range r.conn.Channels() {
		if strings.ToLower(ch.Name()) == want {
			return ch, true
		}
	}
	return nil, false
}
