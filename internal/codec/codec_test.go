package codec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func newColorMat(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func TestEncode(t *testing.T) {
	t.Run("absent image encodes to empty marker", func(t *testing.T) {
		got, err := Encode(nil)
		if err != nil {
			t.Fatalf("Encode(nil) error = %v", err)
		}
		if got != "" {
			t.Errorf("Encode(nil) = %q, want empty", got)
		}

		empty := gocv.NewMat()
		defer empty.Close()
		got, err = Encode(&empty)
		if err != nil {
			t.Fatalf("Encode(empty) error = %v", err)
		}
		if got != "" {
			t.Errorf("Encode(empty) = %q, want empty", got)
		}
	})

	t.Run("valid image has data URI prefix", func(t *testing.T) {
		mat := newColorMat(t, 32, 48)

		got, err := Encode(&mat)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !strings.HasPrefix(got, DataURIPrefix) {
			t.Errorf("Encode() = %.40q..., want prefix %q", got, DataURIPrefix)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		mat := newColorMat(t, 16, 16)

		first, _ := Encode(&mat)
		second, _ := Encode(&mat)
		if first != second {
			t.Error("Encode() produced different output for the same image")
		}
	})

	t.Run("round trips dimensions", func(t *testing.T) {
		mat := newColorMat(t, 24, 40)

		encoded, err := Encode(&mat)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		decoded, err := DecodeString(encoded)
		if err != nil {
			t.Fatalf("DecodeString() error = %v", err)
		}
		defer decoded.Close()

		if decoded.Rows() != 24 || decoded.Cols() != 40 {
			t.Errorf("decoded size = %dx%d, want 40x24", decoded.Cols(), decoded.Rows())
		}
	})
}

func TestEncodeJPEG_Empty(t *testing.T) {
	if _, err := EncodeJPEG(nil); !errors.Is(err, ErrEncode) {
		t.Errorf("EncodeJPEG(nil) error = %v, want ErrEncode", err)
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := DecodeFile(filepath.Join(dir, "missing.jpg"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("DecodeFile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "notes.jpg")
		if err := os.WriteFile(path, []byte("definitely not a jpeg"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := DecodeFile(path)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("DecodeFile() error = %v, want ErrDecode", err)
		}
	})

	t.Run("non-ASCII path", func(t *testing.T) {
		mat := newColorMat(t, 20, 30)
		data, err := EncodeJPEG(&mat)
		if err != nil {
			t.Fatalf("EncodeJPEG() error = %v", err)
		}

		path := filepath.Join(dir, "人脸照片.jpg")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}

		decoded, err := DecodeFile(path)
		if err != nil {
			t.Fatalf("DecodeFile() error = %v", err)
		}
		defer decoded.Close()

		if decoded.Cols() != 30 || decoded.Rows() != 20 {
			t.Errorf("decoded size = %dx%d, want 30x20", decoded.Cols(), decoded.Rows())
		}
		if decoded.Channels() != 3 {
			t.Errorf("channels = %d, want 3", decoded.Channels())
		}
	})
}

func TestDecodeBytes_Empty(t *testing.T) {
	if _, err := DecodeBytes(nil); !errors.Is(err, ErrDecode) {
		t.Errorf("DecodeBytes(nil) error = %v, want ErrDecode", err)
	}
}
