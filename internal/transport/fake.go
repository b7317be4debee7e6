package transport

import (
	"sync"
)

// FakeUser records sent messages for assertions.
type FakeUser struct {
	UserName string

	mu       sync.Mutex
	Messages []string
}

func (u *FakeUser) Name() string { return u.UserName }

func (u *FakeUser) SendTextMessage(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Messages = append(u.Messages, text)
}

// Sent returns a snapshot of messages delivered to the user.
func (u *FakeUser) Sent() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.Messages...)
}

// FakeChannel records sent messages for assertions.
type FakeChannel struct {
	ChannelName string

	mu       sync.Mutex
	Messages []string
}

func (c *FakeChannel) Name() string { return c.ChannelName }

func (c *FakeChannel) SendTextMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, text)
}

// Sent returns a snapshot of messages delivered to the channel.
func (c *FakeChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Messages...)
}

// FakeConnection is an in-memory Connection for tests.
type FakeConnection struct {
	UsersBySession map[int]*FakeUser
	ChannelsByID   map[int]*FakeChannel
	Me             *FakeUser
	MyChannel      *FakeChannel
}

// NewFakeConnection creates an empty fake connection with a bot self user.
func NewFakeConnection() *FakeConnection {
	return &FakeConnection{
		UsersBySession: make(map[int]*FakeUser),
		ChannelsByID:   make(map[int]*FakeChannel),
		Me:             &FakeUser{UserName: "voxbot"},
	}
}

// AddUser registers a user under the given session id.
func (f *FakeConnection) AddUser(session int, name string) *FakeUser {
	u := &FakeUser{UserName: name}
	f.UsersBySession[session] = u
	return u
}

// AddChannel registers a channel under the given id.
func (f *FakeConnection) AddChannel(id int, name string) *FakeChannel {
	c := &FakeChannel{ChannelName: name}
	f.ChannelsByID[id] = c
	return c
}

func (f *FakeConnection) UserBySession(id int) (User, bool) {
	u, ok := f.UsersBySession[id]
	return u, ok
}

func (f *FakeConnection) ChannelByID(id int) (Channel, bool) {
	c, ok := f.ChannelsByID[id]
	return c, ok
}

func (f *FakeConnection) Users() []User {
	out := make([]User, 0, len(f.UsersBySession))
	for _, u := range f.UsersBySession {
		out = append(out, u)
	}
	return out
}

func (f *FakeConnection) Channels() []Channel {
	out := make([]Channel, 0, len(f.ChannelsByID))
	for _, c := range f.ChannelsByID {
		out = append(out, c)
	}
	return out
}

func (f *FakeConnection) Self() User { return f.Me }

func (f *FakeConnection) SelfChannel() (Channel, bool) {
	if f.MyChannel == nil {
		return nil, false
	}
	return f.MyChannel, true
}
