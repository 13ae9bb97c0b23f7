package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local writes objects below a directory on disk.
type Local struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewLocal returns a Local archiver rooted at dir. baseURL prefixes returned
// URLs; when empty the URL is a file:// path.
func NewLocal(dir, baseURL string) *Local {
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (l *Local) Put(_ context.Context, key, contentType string, data []byte) (Object, error) {
	clean := filepath.Clean("/" + key)
	path := filepath.Join(l.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Object{}, fmt.Errorf("archive: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("archive: write %s: %w", key, err)
	}
	url := "file://" + path
	if l.baseURL != "" {
		url = l.baseURL + filepath.ToSlash(clean)
	}
	return Object{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		StoredAt:    l.now().UTC(),
	}, nil
}
