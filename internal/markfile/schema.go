// Package markfile reads and writes satchel's YAML interchange format,
// used by the import and export commands.
package markfile

import "time"

// CurrentVersion is the markfile format version this build writes.
const CurrentVersion = 1

// Entry is a single bookmark in a markfile. Only title and url matter
// on import; identifiers and timestamps are assigned by the server.
type Entry struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// File is the root structure of a markfile.
type File struct {
	Version   int       `yaml:"version"`
	Exported  time.Time `yaml:"exported,omitempty"`
	Bookmarks []Entry   `yaml:"bookmarks"`
}
