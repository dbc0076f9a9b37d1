package markfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/satchelhq/satchel/internal/domain"
)

// Export renders the collection to markfile YAML at path. The output
// round-trips through Load and Map unchanged.
func Export(path string, items []domain.Bookmark) error {
	f := File{
		Version:   CurrentVersion,
		Exported:  time.Now().UTC(),
		Bookmarks: make([]Entry, 0, len(items)),
	}
	for _, b := range items {
		f.Bookmarks = append(f.Bookmarks, Entry{Title: b.Title, URL: b.URL})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to render markfile yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write markfile: %w", err)
	}
	return nil
}
