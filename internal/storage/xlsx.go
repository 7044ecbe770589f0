package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// Columns is the header row of the spreadsheet log, in order.
var Columns = []string{"timestamp", "user_prompt", "system_prompt", "response", "response time (s)"}

const stripeColor = "F2F2F2"

// XLSXRecorder keeps the interaction log as a single-sheet workbook. Every
// append reads the whole table, adds the new rows and writes the whole
// workbook again, re-applying the header and row striping.
type XLSXRecorder struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

func NewXLSXRecorder(path string) (*XLSXRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log dir: %w", err)
	}
	return &XLSXRecorder{path: path, loc: time.Local}, nil
}

func (r *XLSXRecorder) Path() string { return r.path }

func (r *XLSXRecorder) AppendInteraction(entry Entry) error {
	return r.AppendInteractions(entry)
}

// AppendInteractions adds entries after the existing rows in one rewrite.
func (r *XLSXRecorder) AppendInteractions(entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	return r.saveUnlocked(append(existing, entries...))
}

// ReplaceInteractions rewrites the log so it holds exactly entries.
func (r *XLSXRecorder) ReplaceInteractions(entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveUnlocked(entries)
}

func (r *XLSXRecorder) LoadInteractions() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *XLSXRecorder) loadUnlocked() ([]Entry, error) {
	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open log workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read log rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		idx[name] = i
	}
	for _, name := range Columns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("log workbook %s has no %q column", r.path, name)
		}
	}

	entries := make([]Entry, 0, len(rows)-1)
	for n, row := range rows[1:] {
		cell := func(name string) string {
			if i := idx[name]; i < len(row) {
				return row[i]
			}
			return ""
		}
		ts, err := r.parseTimestamp(cell("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		e := Entry{
			Timestamp:    ts,
			UserPrompt:   cell("user_prompt"),
			SystemPrompt: cell("system_prompt"),
			Response:     cell("response"),
		}
		if s := cell("response time (s)"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse response time %q: %w", n+2, s, err)
			}
			e.ResponseTime = &v
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// parseTimestamp accepts the text form this recorder writes and the date
// serial numbers other tools write for datetime cells.
func (r *XLSXRecorder) parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, r.loc); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, r.loc), nil
}

func (r *XLSXRecorder) saveUnlocked(entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	stripeStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripeColor}},
	})
	if err != nil {
		return fmt.Errorf("stripe style: %w", err)
	}

	last, _ := excelize.ColumnNumberToName(len(Columns))
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "D", 50)
	_ = f.SetColWidth(sheet, "E", "E", 18)

	for i, e := range entries {
		row := i + 2
		cells := []interface{}{
			e.Timestamp.In(r.loc).Format(TimestampLayout),
			clip(e.UserPrompt),
			clip(e.SystemPrompt),
			clip(e.Response),
		}
		if e.ResponseTime != nil {
			cells = append(cells, *e.ResponseTime)
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, first, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if i%2 == 1 {
			if err := f.SetCellStyle(sheet, first, last+strconv.Itoa(row), stripeStyle); err != nil {
				return fmt.Errorf("style row %d: %w", row, err)
			}
		}
	}
	return r.replaceFile(f)
}

// replaceFile writes the workbook next to the log and renames it into place,
// so the log on disk is always the last complete table.
func (r *XLSXRecorder) replaceFile(f *excelize.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".chatlog-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace log workbook: %w", err)
	}
	return nil
}

// clip keeps a cell within the per-cell character limit of the format.
// Control characters other than tab, newline and carriage return are not
// representable in the workbook XML and come back as U+FFFD after a save.
func clip(s string) string {
	if len(s) <= excelize.TotalCellChars {
		return s
	}
	rs := []rune(s)
	if len(rs) <= excelize.TotalCellChars {
		return s
	}
	return string(rs[:excelize.TotalCellChars])
}
