package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestLocalStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, "http://localhost:5000/", zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	obj, err := store.Put(context.Background(), "123-car.jpg", []byte("payload"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if obj.Path != "/uploads/123-car.jpg" {
		t.Errorf("Path = %q", obj.Path)
	}
	if obj.URL != "http://localhost:5000/uploads/123-car.jpg" {
		t.Errorf("URL = %q", obj.URL)
	}

	data, err := os.ReadFile(filepath.Join(dir, "123-car.jpg"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("stored data = %q", data)
	}

	if err := store.Delete(context.Background(), "123-car.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "123-car.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present after Delete, stat err = %v", err)
	}
	if err := store.Delete(context.Background(), "123-car.jpg"); err != nil {
		t.Errorf("Delete() of missing file error = %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	for _, key := range []string{"", "../evil.jpg", "/etc/passwd", "a/../../b.jpg", `a\b.jpg`} {
		if _, err := store.Put(context.Background(), key, []byte("x"), "image/png"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()

	nested := filepath.Join(base, "a", "b")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir() on existing dir error = %v", err)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(file); err == nil {
		t.Error("EnsureDir() on a regular file should fail")
	}
	if err := EnsureDir(""); err == nil {
		t.Error("EnsureDir(\"\") should fail")
	}
	if err := EnsureDir("/"); err == nil {
		t.Error("EnsureDir(\"/\") should fail")
	}
}

func TestLocalStoreKeyOf(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:5000", zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	tests := []struct {
		ref  string
		key  string
		want bool
	}{
		{"/uploads/123-car.jpg", "123-car.jpg", true},
		{"http://localhost:5000/uploads/123-car.jpg", "123-car.jpg", true},
		{"https://cdn.example.com/uploads/123-car.jpg", "", false},
		{"/uploads/../secrets.txt", "", false},
		{"/static/123-car.jpg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		key, ok := store.KeyOf(tt.ref)
		if ok != tt.want || key != tt.key {
			t.Errorf("KeyOf(%q) = %q, %v; want %q, %v", tt.ref, key, ok, tt.key, tt.want)
		}
	}
}
