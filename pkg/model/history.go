package model

import (
	"time"
)

// HistoryEntry is one immutable record of a mutation.
//
// Entries are ordered by their token.
type HistoryEntry struct {
	Token     string
	Timestamp time.Time
	Author    Contributor
	ID        string
	Action    Action
	Path      string
	Record    MetadataRecord
}

// Ref returns the composite reference of the version recorded by this entry
func (e HistoryEntry) Ref() CompositeRef {
	return e.Record.Ref(e.ID)
}

// Message renders the textual form of the entry
func (e HistoryEntry) Message() (Message, error) {
	record, err := EncodeRecord(e.Record)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:     e.ID,
		Action: e.Action,
		Path:   e.Path,
		Record: record,
	}, nil
}

// ParseHistoryEntry rebuilds an entry from its textual form and commit attributes
func ParseHistoryEntry(token string, timestamp time.Time, author Contributor, msg string) (HistoryEntry, error) {
	m, err := ParseMessage(msg)
	if err != nil {
		return HistoryEntry{}, err
	}
	record, err := DecodeRecord(m.Record)
	if err != nil {
		return HistoryEntry{}, err
	}
	return HistoryEntry{
		Token:     token,
		Timestamp: timestamp,
		Author:    author,
		ID:        m.ID,
		Action:    m.Action,
		Path:      m.Path,
		Record:    record,
	}, nil
}
