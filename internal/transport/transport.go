// Package transport defines the contracts the command pipeline consumes
// from the underlying voice-server connection. The real protocol client
// (connection handling, reconnects, audio) lives behind these interfaces
// and is not part of this module's core.
package transport

// User is a connected user handle.
type User interface {
	// Name returns the user's display name.
	Name() string

	// SendTextMessage delivers text to the user. Sends are fire-and-forget;
	// no acknowledgement is awaited.
	SendTextMessage(text string)
}

// Channel is a channel handle.
type Channel interface {
	// Name returns the channel's name.
	Name() string

	// SendTextMessage delivers text to the channel.
	SendTextMessage(text string)
}

// Connection is the live server connection consumed by the pipeline.
type Connection interface {
	// UserBySession resolves a user by session/actor id.
	UserBySession(id int) (User, bool)

	// ChannelByID resolves a channel by id.
	ChannelByID(id int) (Channel, bool)

	// Users lists currently connected users.
	Users() []User

	// Channels lists the server's channels.
	Channels() []Channel

	// Self returns the bot's own user handle.
	Self() User

	// SelfChannel returns the channel the bot currently occupies.
	SelfChannel() (Channel, bool)
}
