package storage

import "fmt"

// MultiRecorder appends every entry to each recorder in order. Entries are
// loaded back from the first one.
type MultiRecorder []Recorder

func (m MultiRecorder) AppendInteraction(entry Entry) error {
	for i, r := range m {
		if err := r.AppendInteraction(entry); err != nil {
			return fmt.Errorf("recorder %d: %w", i, err)
		}
	}
	return nil
}

func (m MultiRecorder) LoadInteractions() ([]Entry, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].LoadInteractions()
}

// Export rebuilds the spreadsheet dst from the entries of src and returns how
// many rows it now holds. Rows already in dst are replaced, not kept. An empty
// src leaves dst untouched.
func Export(src Recorder, dst *XLSXRecorder) (int, error) {
	entries, err := src.LoadInteractions()
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := dst.ReplaceInteractions(entries...); err != nil {
		return 0, fmt.Errorf("write spreadsheet: %w", err)
	}
	return len(entries), nil
}
