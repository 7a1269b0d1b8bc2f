package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/ccsi/dmflite/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteHistory(t *testing.T) {
	ts := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	dep := model.NewRef(model.NewID(), model.InitialVersion)
	entries := []model.HistoryEntry{
		{
			Token:     "folder-token",
			Timestamp: ts,
			Author:    model.NewContributor("u1"),
			ID:        "folder-id",
			Action:    model.ActionInitialized,
			Path:      "/u1/Sim",
			Record:    model.NewFolderRecord("Sim", "", "u1"),
		},
		{
			Token:     "doc-token",
			Timestamp: ts.Add(time.Minute),
			Author:    model.NewContributor("u1"),
			ID:        "doc-id",
			Action:    model.ActionNewVersion,
			Path:      "/u1/Sim/model.txt",
			Record: model.MetadataRecord{
				DisplayName:  "model.txt",
				Checksum:     model.Checksum([]byte("abc")),
				Dependencies: []model.CompositeRef{dep},
				Version:      model.Version{Major: 2},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(Sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	assert.Equal(t, "folder-id", rows[1][3])
	assert.Equal(t, "Initialized", rows[1][4])
	assert.Equal(t, "", rows[1][7], "folders have no version")

	assert.Equal(t, "/u1/Sim/model.txt", rows[2][5])
	assert.Equal(t, "2.0", rows[2][7])
	assert.Equal(t, dep.String(), rows[2][12])
}
