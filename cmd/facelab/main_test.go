package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBrowserURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/"},
	}
	for _, tt := range tests {
		if got := browserURL(tt.addr); got != tt.want {
			t.Errorf("browserURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestFindWebDir_DataDir(t *testing.T) {
	// Run from an empty directory so no relative web dir matches.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	empty := t.TempDir()
	if err := os.Chdir(filepath.Join(empty)); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	data := t.TempDir()
	if got := findWebDir(data); got != "" {
		t.Errorf("findWebDir() = %q before web dir exists", got)
	}

	web := filepath.Join(data, "web")
	if err := os.Mkdir(web, 0755); err != nil {
		t.Fatal(err)
	}
	if got := findWebDir(data); got != web {
		t.Errorf("findWebDir() = %q, want %q", got, web)
	}
}
