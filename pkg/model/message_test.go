package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLayout(t *testing.T) {
	id := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	m := Message{
		ID:     id,
		Action: ActionNewVersion,
		Path:   "/u1/Sim/model.txt",
		Record: []byte(`{"display_name":"model.txt"}`),
	}
	expected := id + "\n" +
		"Created new version for: /u1/Sim/model.txt\n" +
		"\n" +
		`{"display_name":"model.txt"}`
	assert.Equal(t, expected, m.String())

	parsed, err := ParseMessage(expected)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
}

func TestParseMessageTolerance(t *testing.T) {
	// older writers put a space before the colon
	parsed, err := ParseMessage("abc\nCreated new version for : /u1/a: b.txt\n\n{}\n")
	require.NoError(t, err)
	assert.Equal(t, ActionNewVersion, parsed.Action)
	assert.Equal(t, "/u1/a: b.txt", parsed.Path)
	assert.Equal(t, "{}", string(parsed.Record))
}

func TestParseMalformedMessage(t *testing.T) {
	for _, bad := range []string{
		"",
		"abc\nInitialized: /x\n",
		"\nInitialized: /x\n\n{}",
		"abc\nno tag here\n\n{}",
		"abc\nInitialized: /x\nnot blank\n{}",
		"abc\nInitialized: /x\n\n{}\n{}",
		"abc\nInitialized: \n\n{}",
	} {
		_, err := ParseMessage(bad)
		require.Error(t, err, "%q", bad)
		assert.ErrorIs(t, err, ErrMalformedMessage)
	}
}

func TestHistoryEntryRoundTrip(t *testing.T) {
	r := sampleRecord()
	e := HistoryEntry{
		Token:     "token",
		Timestamp: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Author:    NewContributor("u1"),
		ID:        NewID(),
		Action:    ActionInitialized,
		Path:      "/u1/model.txt",
		Record:    r,
	}
	m, err := e.Message()
	require.NoError(t, err)

	parsed, err := ParseHistoryEntry(e.Token, e.Timestamp, e.Author, m.String())
	require.NoError(t, err)
	assert.Equal(t, e, parsed)
	assert.Equal(t, NewRef(e.ID, r.Version), parsed.Ref())
}
