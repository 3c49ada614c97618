package upload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/facelab/internal/codec"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	return s
}

func TestStorage_Save(t *testing.T) {
	s := newTestStorage(t)
	data := pngBytes(t, 32, 24)

	res, err := s.Save("face.png", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if res.StoredName != "face.png" {
		t.Errorf("StoredName = %q, want face.png", res.StoredName)
	}
	if !filepath.IsAbs(res.Path) {
		t.Errorf("Path %q should be absolute", res.Path)
	}
	if res.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", res.Size, len(data))
	}
	if res.Width != 32 || res.Height != 24 {
		t.Errorf("dimensions = %dx%d, want 32x24", res.Width, res.Height)
	}

	onDisk, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Error("stored bytes differ from the upload")
	}
}

func TestStorage_SaveDuplicateNamesGetSuffix(t *testing.T) {
	s := newTestStorage(t)
	data := pngBytes(t, 8, 8)

	want := []string{"photo.png", "photo_1.png", "photo_2.png", "photo_3.png"}
	seen := map[string]bool{}

	for i, name := range want {
		res, err := s.Save("photo.png", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
		if res.StoredName != name {
			t.Errorf("Save() #%d stored as %q, want %q", i, res.StoredName, name)
		}
		if seen[res.Path] {
			t.Errorf("Save() #%d reused path %q", i, res.Path)
		}
		seen[res.Path] = true
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(want) {
		t.Errorf("upload dir holds %d files, want %d", len(entries), len(want))
	}
}

func TestStorage_SaveRejectsNonImage(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Save("notes.jpg", strings.NewReader("definitely not a jpeg"))
	if !errors.Is(err, codec.ErrDecode) {
		t.Fatalf("Save() error = %v, want codec.ErrDecode", err)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d files behind", len(entries))
	}
}

func TestStorage_SaveEmpty(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.Save("empty.png", bytes.NewReader(nil)); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Save(empty) error = %v, want ErrEmptyFile", err)
	}
	if _, err := s.Save("  ", bytes.NewReader(pngBytes(t, 2, 2))); !errors.Is(err, ErrNoName) {
		t.Errorf("Save(no name) error = %v, want ErrNoName", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"face.jpg", "face.jpg"},
		{"my photo.png", "my_photo.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\pic.jpeg`, "pic.jpeg"},
		{".hidden.png", "hidden.png"},
		{"a*b?c.gif", "abc.gif"},
		{"snap-2024_01.bmp", "snap-2024_01.bmp"},
		{"noext", "noext"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeName_NonASCIIKeepsExtension(t *testing.T) {
	got := SanitizeName("人脸照片.jpg")

	if !strings.HasSuffix(got, ".jpg") {
		t.Errorf("SanitizeName() = %q, want a .jpg name", got)
	}
	if len(got) <= len(".jpg") {
		t.Errorf("SanitizeName() = %q, want a generated base name", got)
	}
	for _, r := range got {
		if r > 127 {
			t.Fatalf("SanitizeName() = %q contains non-ASCII", got)
		}
	}
}
