// Package upload stores images sent by clients so that they can be used as
// file sources for detection.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ayusman/facelab/internal/codec"
)

var (
	// ErrEmptyFile is returned when the uploaded content has no bytes.
	ErrEmptyFile = errors.New("uploaded file is empty")
	// ErrNoName is returned when no file name was supplied.
	ErrNoName = errors.New("no file name given")
)

// maxSuffix bounds the search for a free name.
const maxSuffix = 10000

// Result describes a stored upload.
type Result struct {
	OriginalName string
	StoredName   string
	Path         string
	Size         int64
	Width        int
	Height       int
}

// Storage saves uploads into a directory.
type Storage struct {
	dir string
}

// NewStorage creates the upload directory if needed and returns a Storage for it.
func NewStorage(dir string) (*Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Storage{dir: abs}, nil
}

// Dir returns the absolute upload directory.
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes r under a sanitized form of filename. An existing file is never
// overwritten: "photo.jpg" becomes "photo_1.jpg", "photo_2.jpg" and so on.
// The content must decode as an image, otherwise the file is removed and an
// error wrapping codec.ErrDecode is returned.
func (s *Storage) Save(filename string, r io.Reader) (*Result, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrNoName
	}

	name := SanitizeName(filename)
	f, path, err := s.create(name)
	if err != nil {
		return nil, err
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard(path)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if size == 0 {
		s.discard(path)
		return nil, ErrEmptyFile
	}

	width, height, err := dimensions(path)
	if err != nil {
		s.discard(path)
		return nil, fmt.Errorf("%w: %v", codec.ErrDecode, err)
	}

	log.WithFields(log.Fields{
		"file": filepath.Base(path),
		"size": size,
	}).Info("upload stored")

	return &Result{
		OriginalName: filename,
		StoredName:   filepath.Base(path),
		Path:         path,
		Size:         size,
		Width:        width,
		Height:       height,
	}, nil
}

// create opens a new file for name, adding a numeric suffix until the name is free.
func (s *Storage) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxSuffix; i++ {
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create upload file: %w", err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return nil, "", fmt.Errorf("no free file name for %q", name)
}

func (s *Storage) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("file", path).Warn("failed to remove rejected upload")
	}
}

func dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// SanitizeName reduces a client supplied file name to a safe base name made of
// ASCII letters, digits, '.', '_' and '-'. Directory parts are dropped and
// whitespace becomes '_'. A name with nothing usable left before the extension
// is replaced by a random one that keeps the extension.
func SanitizeName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)

	ext := clean(filepath.Ext(filename))
	base := clean(strings.TrimSuffix(filename, filepath.Ext(filename)))
	base = strings.Trim(base, "._")
	ext = strings.Trim(ext, "._")

	if base == "" {
		base = uuid.New().String()
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
