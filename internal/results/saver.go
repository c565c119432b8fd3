package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"siem-mcp/internal/siemerr"

	"github.com/google/uuid"
)

const timestampLayout = "20060102T150405"

// Saver writes query results to uniquely named JSON files under a directory.
type Saver struct {
	dir    string
	now    func() time.Time
	suffix func() string
}

// NewSaver creates a Saver rooted at dir. The directory is created on first save.
func NewSaver(dir string) *Saver {
	return &Saver{dir: dir, now: time.Now, suffix: shortID}
}

// Dir returns the directory results are written to.
func (s *Saver) Dir() string {
	return s.dir
}

// Save pretty-prints payload into <dir>/<tag>_<timestamp>_<suffix>.json and
// returns the path. The file only appears under its final name once it has
// been fully written and synced.
func (s *Saver) Save(tag string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", siemerr.Persistence("encode result payload", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", siemerr.Persistence("create results directory", err)
	}

	name := fmt.Sprintf("%s_%s_%s.json", tag, s.now().Format(timestampLayout), s.suffix())
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", siemerr.Persistence("create temp result file", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpPath)
		return "", siemerr.Persistence("write result file", err)
	}

	// Link fails when path exists, so a published file is never replaced.
	err = os.Link(tmpPath, path)
	os.Remove(tmpPath)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", siemerr.Persistence("result file already exists", err)
		}
		return "", siemerr.Persistence("publish result file", err)
	}

	return path, nil
}

func shortID() string {
	return uuid.New().String()[:8]
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read loads a previously saved result file. Paths outside the results
// directory are rejected.
func (s *Saver) Read(path string) ([]byte, error) {
	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, siemerr.NotFound("resolve results directory", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, siemerr.NotFound("resolve result path", err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, siemerr.NotFound(fmt.Sprintf("result file %q is outside %s", path, s.dir), nil)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, siemerr.NotFound(fmt.Sprintf("read result file %q", path), err)
	}
	return data, nil
}
