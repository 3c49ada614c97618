// Package codec converts OpenCV images to and from their transport forms.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// DataURIPrefix is prepended to every encoded image so browsers can use it directly as an img src.
const DataURIPrefix = "data:image/jpeg;base64,"

var (
	// ErrNotFound is returned when an image path does not exist.
	ErrNotFound = errors.New("image file not found")
	// ErrDecode is returned when bytes cannot be decoded as an image.
	ErrDecode = errors.New("cannot decode image data")
	// ErrEncode is returned when an image cannot be compressed.
	ErrEncode = errors.New("cannot encode image")
)

// Encode compresses img to JPEG and returns it as a base64 data URI.
// A nil or empty Mat encodes to the empty string, which marks an absent image.
func Encode(img *gocv.Mat) (string, error) {
	if img == nil || img.Empty() {
		return "", nil
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}

	return DataURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// EncodeJPEG compresses img to JPEG bytes.
func EncodeJPEG(img *gocv.Mat) ([]byte, error) {
	if img == nil || img.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close releases.
	raw := buf.GetBytes()
	data := make([]byte, len(raw))
	copy(data, raw)

	return data, nil
}

// DecodeString reverses Encode. The data URI prefix is optional.
func DecodeString(s string) (gocv.Mat, error) {
	if len(s) >= len(DataURIPrefix) && s[:len(DataURIPrefix)] == DataURIPrefix {
		s = s[len(DataURIPrefix):]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return DecodeBytes(data)
}

// DecodeFile reads the file at path and decodes it.
// The bytes are read by Go rather than by OpenCV so paths with non-ASCII
// characters load on every platform.
func DecodeFile(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return gocv.NewMat(), fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return gocv.NewMat(), fmt.Errorf("read %s: %w", path, err)
	}

	mat, err := DecodeBytes(data)
	if err != nil {
		return mat, fmt.Errorf("%s: %w", path, err)
	}

	return mat, nil
}

// DecodeBytes decodes an encoded image, keeping its channel layout (including alpha).
// The caller is responsible for closing the returned Mat.
func DecodeBytes(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: no data", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrDecode
	}

	return mat, nil
}
