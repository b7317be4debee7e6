package commands

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the command prefix used when the config does not
// override it.
const DefaultPrefix = "!"

// Parser turns raw transport text events into Commands.
//
// The grammar is a single line of the form
//
//	!name.param1.param2=value free text body
//
// where the prefix token is configurable. Malformed input never fails the
// parser; it degrades to a nil result or an empty command name instead.
type Parser struct {
	prefix string
}

// NewParser creates a parser for the given prefix token.
// An empty prefix is a missing configuration dependency and is rejected.
func NewParser(prefix string) (*Parser, error) {
	if prefix == "" {
		return nil, fmt.Errorf("command prefix is required")
	}
	return &Parser{prefix: prefix}, nil
}

// Prefix returns the configured prefix token.
func (p *Parser) Prefix() string {
	return p.prefix
}

// Parse converts a text event into a Command.
//
// Returns nil when the trimmed message is empty. A message that does not
// start with the prefix yields a Command with an empty Name and the full
// trimmed text as Message (a plain chat line). A lone prefix or an empty
// name segment also yields an empty Name.
func (p *Parser) Parse(evt TextEvent) *Command {
	text := strings.TrimSpace(evt.Message)
	if text == "" {
		return nil
	}

	if !strings.HasPrefix(text, p.prefix) {
		return NewCommand("", text, nil, evt.Actor, evt.ChannelID(), evt.SessionID())
	}

	head := text
	body := ""
	if i := strings.Index(text, " "); i >= 0 {
		head = text[:i]
		body = strings.TrimSpace(text[i+1:])
	}

	name := strings.TrimPrefix(head, p.prefix)
	var params []string
	if i := strings.Index(name, "."); i >= 0 {
		for _, tag := range strings.Split(name[i+1:], ".") {
			if tag != "" {
				params = append(params, tag)
			}
		}
		name = name[:i]
	}

	return NewCommand(name, body, params, evt.Actor, evt.ChannelID(), evt.SessionID())
}
