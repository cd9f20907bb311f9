package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPromptNotFound indicates the named template does not exist in the store.
var ErrPromptNotFound = errors.New("prompt template not found")

// Store loads named prompt templates from a directory of plain UTF-8 text
// files. Templates are read per call; the files are small and a stale cache
// after an edit would be worse than the read.
type Store struct {
	dir string
}

// NewStore builds a store rooted at the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load returns the contents of the named template file (<name>.txt).
func (s *Store) Load(name string) (string, error) {
	path := filepath.Join(s.dir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("template %q: %w", name, ErrPromptNotFound)
		}
		return "", fmt.Errorf("read template %q: %w", name, err)
	}

	return string(data), nil
}

// Substitute replaces every literal occurrence of each {key} token in the
// template with its value. A single pass: substituted content is never
// re-expanded, and tokens without a matching variable are left verbatim.
func Substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}

	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}

	return strings.NewReplacer(pairs...).Replace(template)
}
