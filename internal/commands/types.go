// Package commands provides the command value object and the prefix-grammar
// parser that turns raw voice-server text events into structured commands.
package commands

// Unset marks an absent actor, channel, or session id.
const Unset = -1

// Command represents one parsed invocation.
//
// A Command with an empty Name is a plain chat line (or a malformed
// invocation such as a lone prefix character) and is never dispatched.
// Commands are not mutated after being queued, with one exception: the alias
// gate rewrites Name during non-generic alias substitution.
type Command struct {
	// Name is the command name without the leading prefix. Empty means
	// "not a command".
	Name string

	// Message is the free-text body following the command head.
	Message string

	// Parameters are the raw dot-delimited tokens, each optionally of the
	// form key=value, in invocation order.
	Parameters []string

	// Actor is the session/user id of the issuer, Unset when unknown.
	Actor int

	// ChannelID is the originating channel, Unset for private messages.
	ChannelID int

	// SessionID is the private-message session, Unset for channel messages.
	SessionID int
}

// NewCommand builds a Command, normalizing the channel/session pair.
// When both ChannelID and SessionID are set, the channel wins and the
// session id is cleared, so the IsPrivate invariant always holds.
func NewCommand(name, message string, params []string, actor, channelID, sessionID int) *Command {
	if channelID > Unset && sessionID > Unset {
		sessionID = Unset
	}
	return &Command{
		Name:       name,
		Message:    message,
		Parameters: params,
		Actor:      actor,
		ChannelID:  channelID,
		SessionID:  sessionID,
	}
}

// IsPrivate reports whether the command arrived over a private session
// rather than a channel.
func (c *Command) IsPrivate() bool {
	return c.SessionID > Unset && c.ChannelID == Unset
}

// Clone returns a deep copy of the command.
func (c *Command) Clone() *Command {
	if c == nil {
		return nil
	}
	dup := *c
	if c.Parameters != nil {
		dup.Parameters = make([]string, len(c.Parameters))
		copy(dup.Parameters, c.Parameters)
	}
	return &dup
}

// TextEvent is the shape of an incoming transport text message.
// Channel and session ids arrive as lists on the wire; only the first
// element is meaningful for command processing.
type TextEvent struct {
	// Message is the raw text of the event.
	Message string

	// Actor is the issuing user's id, Unset when the transport omits it.
	Actor int

	// ChannelIDs lists target channels; empty for private messages.
	ChannelIDs []int

	// SessionIDs lists target private sessions; empty for channel messages.
	SessionIDs []int
}

// ChannelID returns the first channel id, or Unset.
func (e TextEvent) ChannelID() int {
	if len(e.ChannelIDs) > 0 {
		return e.ChannelIDs[0]
	}
	return Unset
}

// SessionID returns the first session id, or Unset.
func (e TextEvent) SessionID() int {
	if len(e.SessionIDs) > 0 {
		return e.SessionIDs[0]
	}
	return Unset
}

// WithMessage returns a copy of the event carrying a different message body.
// Used by generic alias expansion to re-parse each sub-command line.
func (e TextEvent) WithMessage(msg string) TextEvent {
	dup := e
	dup.Message = msg
	if e.ChannelIDs != nil {
		dup.ChannelIDs = append([]int(nil), e.ChannelIDs...)
	}
	if e.SessionIDs != nil {
		dup.SessionIDs = append([]int(nil), e.SessionIDs...)
	}
	return dup
}
