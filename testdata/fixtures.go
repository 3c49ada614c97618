// Package testdata builds image fixtures for tests.
package testdata

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"

	"gocv.io/x/gocv"
)

// FixturesEnv overrides the directory searched for photo fixtures.
const FixturesEnv = "FACELAB_FIXTURES"

// Solid returns a rows x cols BGR image filled with c.
// The caller is responsible for closing the returned Mat.
func Solid(rows, cols int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		rows, cols, gocv.MatTypeCV8UC3,
	)
}

// Write encodes img into dir/name; the extension picks the format.
func Write(dir, name string, img gocv.Mat) (string, error) {
	buf, err := gocv.IMEncode(gocv.FileExt(filepath.Ext(name)), img)
	if err != nil {
		return "", fmt.Errorf("encode fixture %s: %w", name, err)
	}
	defer buf.Close()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.GetBytes(), 0644); err != nil {
		return "", fmt.Errorf("write fixture %s: %w", name, err)
	}
	return path, nil
}

// WriteSolid writes a solid color image of the given size into dir/name.
func WriteSolid(dir, name string, rows, cols int, c color.RGBA) (string, error) {
	img := Solid(rows, cols, c)
	defer img.Close()
	return Write(dir, name, img)
}

// Fixture returns the path of a binary fixture such as the photo
// "known_two_faces.jpg" or the pigo cascade "facefinder". It looks in
// $FACELAB_FIXTURES and then testdata/faces. ok is false when the file is not present.
func Fixture(name string) (path string, ok bool) {
	var dirs []string
	if dir := os.Getenv(FixturesEnv); dir != "" {
		dirs = append(dirs, dir)
	}
	if _, file, _, found := runtime.Caller(0); found {
		dirs = append(dirs, filepath.Join(filepath.Dir(file), "faces"))
	}

	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
