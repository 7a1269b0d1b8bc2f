package model

import (
	"strings"
)

// Action describes the kind of mutation recorded by a history entry
type Action string

const (
	// ActionInitialized is recorded when an object is first committed
	ActionInitialized Action = "Initialized"

	// ActionNewVersion is recorded when new content is committed for an existing document
	ActionNewVersion Action = "Created new version for"

	// ActionMetadataChanged is recorded when only the metadata of an object changes
	ActionMetadataChanged Action = "Metadata changed"
)

const (
	actionSeparator = ": "
	lineSeparator   = "\n"
)

// Message is the textual form of a history entry
type Message struct {
	ID     string
	Action Action
	Path   string
	Record []byte
}

// ActionLine renders the line naming the affected path
func (m Message) ActionLine() string {
	return string(m.Action) + actionSeparator + m.Path
}

func (m Message) String() string {
	return m.ID + lineSeparator + m.ActionLine() + lineSeparator + lineSeparator + string(m.Record)
}

// ParseMessage decodes the textual form of a history entry
func ParseMessage(msg string) (Message, error) {
	lines := strings.SplitN(msg, lineSeparator, 4)
	if len(lines) != 4 {
		return Message{}, ErrMalformedMessage.WrapMessage("expected 4 lines, got %d", len(lines))
	}
	id := strings.TrimSpace(lines[0])
	if id == "" {
		return Message{}, ErrMalformedMessage.WrapMessage("empty object id")
	}
	pos := strings.Index(lines[1], ":")
	if pos < 0 {
		return Message{}, ErrMalformedMessage.WrapMessage("no action tag in %q", lines[1])
	}
	action := Action(strings.TrimSpace(lines[1][:pos]))
	pth := strings.TrimPrefix(lines[1][pos+1:], " ")
	if action == "" || pth == "" {
		return Message{}, ErrMalformedMessage.WrapMessage("invalid action line %q", lines[1])
	}
	if strings.TrimSpace(lines[2]) != "" {
		return Message{}, ErrMalformedMessage.WrapMessage("expected a blank separator line")
	}
	record := strings.TrimSpace(lines[3])
	if record == "" || strings.Contains(record, lineSeparator) {
		return Message{}, ErrMalformedMessage.WrapMessage("expected a single line record")
	}
	return Message{
		ID:     id,
		Action: action,
		Path:   pth,
		Record: []byte(record),
	}, nil
}
