package wal

import (
	"fmt"
	"time"

	"github.com/ccsi/dmflite/pkg/model"
	"gopkg.in/yaml.v2"
)

// All the serializable model for the WAL.

// Entry defines a write-ahead log entry: a commit message with its authoring attributes
type Entry struct {
	Token     string            `json:"token" yaml:"token"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Author    model.Contributor `json:"author" yaml:"author"`
	Message   string            `json:"message" yaml:"message"`
}

// NewEntry creates a new entry for the WAL
func NewEntry(token string, timestamp time.Time, author model.Contributor, message string) *Entry {
	return &Entry{
		Token:     token,
		Timestamp: timestamp,
		Author:    author,
		Message:   message,
	}
}

// HistoryEntry decodes the message of a WAL entry
func (e Entry) HistoryEntry() (model.HistoryEntry, error) {
	return model.ParseHistoryEntry(e.Token, e.Timestamp, e.Author, e.Message)
}

// Unmarshal a WAL entry from a YAML descriptor
func Unmarshal(b []byte) (*Entry, error) {
	if b == nil {
		return nil, fmt.Errorf("received nil entry to unmarshall")
	}
	var e Entry
	err := yaml.Unmarshal(b, &e)
	return &e, err
}

// Marshal a WAL entry as a YAML descriptor
func Marshal(entry *Entry) ([]byte, error) {
	b, err := yaml.Marshal(entry)
	return b, err
}
