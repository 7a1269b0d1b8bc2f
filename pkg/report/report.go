// Package report exports the history of a repository as a spreadsheet.
package report

import (
	"io"
	"strings"

	"github.com/ccsi/dmflite/pkg/model"

	"github.com/xuri/excelize/v2"
)

// Sheet is the name of the worksheet holding the history
const Sheet = "History"

const defaultSheet = "Sheet1"

// Columns of the history worksheet
var Columns = []string{
	"Token",
	"Timestamp",
	"Author",
	"ID",
	"Action",
	"Path",
	"Display name",
	"Version",
	"Checksum",
	"Mimetype",
	"Creator",
	"Confidence",
	"Dependencies",
	"Comment",
}

// Row renders a history entry as a worksheet row
func Row(e model.HistoryEntry) []interface{} {
	version := ""
	if !e.Record.Folder {
		version = e.Record.Version.String()
	}
	deps := make([]string, 0, len(e.Record.Dependencies))
	for _, dep := range e.Record.Dependencies {
		deps = append(deps, dep.String())
	}
	return []interface{}{
		e.Token,
		e.Timestamp.UTC(),
		e.Author.String(),
		e.ID,
		string(e.Action),
		e.Path,
		e.Record.DisplayName,
		version,
		e.Record.Checksum,
		e.Record.Mimetype,
		e.Record.Creator,
		e.Record.Confidence,
		strings.Join(deps, ", "),
		e.Record.CheckInComment,
	}
}

// WriteHistory writes history entries as an xlsx workbook
func WriteHistory(w io.Writer, entries []model.HistoryEntry) (err error) {
	f := excelize.NewFile()
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()

	if err = f.SetSheetName(defaultSheet, Sheet); err != nil {
		return err
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err = f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := Row(e)
		if err = f.SetSheetRow(Sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err = f.SetColWidth(Sheet, "A", last, 24); err != nil {
		return err
	}
	return f.Write(w)
}
