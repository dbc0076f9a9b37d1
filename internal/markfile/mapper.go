package markfile

import (
	"github.com/satchelhq/satchel/internal/domain"
)

// Record is a validated, store-ready bookmark taken from a markfile.
type Record struct {
	Title string
	URL   string
}

// Skipped reports one markfile entry that failed validation.
type Skipped struct {
	// Index is the entry's position in the file, zero-based.
	Index  int
	Title  string
	Reason string
}

// Mapper validates markfile entries into store-ready records.
type Mapper struct{}

// NewMapper creates a new markfile mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map validates every entry under the same rules the server applies.
// Invalid entries are skipped and reported; one bad line must not
// block a whole import.
func (m *Mapper) Map(f *File) ([]Record, []Skipped) {
	records := make([]Record, 0, len(f.Bookmarks))
	var skipped []Skipped

	for i, e := range f.Bookmarks {
		title, err := domain.ValidateTitle(e.Title)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Title: e.Title, Reason: err.Error()})
			continue
		}
		url, err := domain.NormalizeURL(e.URL)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Title: e.Title, Reason: err.Error()})
			continue
		}
		records = append(records, Record{Title: title, URL: url})
	}

	return records, skipped
}
