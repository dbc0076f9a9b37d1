package markfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of a markfile.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for the given path.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the markfile. A version newer than this build
// understands is an error; version 0 means a hand-written file with no
// version line and is accepted.
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read markfile: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse markfile yaml: %w", err)
	}

	if f.Version > CurrentVersion {
		return nil, fmt.Errorf("markfile version %d is newer than this build supports (%d)", f.Version, CurrentVersion)
	}

	return &f, nil
}
