package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store saves uploaded video files under a public static directory and
// hands out the relative path the frontend serves them from. The
// filesystem root never leaves this package.
type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save writes the uploaded file to disk under a name derived from the
// upload time and the original filename, and returns the relative URL
// path ("/video/<name>").
func (s *Store) Save(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open upload: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitize(file.Filename))
	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("cannot create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("cannot write file: %w", err)
	}

	return "/video/" + name, nil
}

// sanitize strips any path components from a client-supplied filename
// and replaces characters that are awkward in URLs.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	return name
}
