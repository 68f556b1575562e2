package tagstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestFilePersister_SaveFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tags.json")
	p := NewFilePersister(path)

	snap := NewSnapshot([]Entry{
		{Filename: "b.gif", Tags: []string{"cat", "funny"}},
		{Filename: "a.gif"},
	})
	if err := p.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"b.gif\": [\n    \"cat\",\n    \"funny\"\n  ],\n  \"a.gif\": []\n}\n"
	if string(data) != want {
		t.Errorf("document =\n%s\nwant\n%s", data, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestFilePersister_LoadMissing(t *testing.T) {
	t.Parallel()

	s := New(NewFilePersister(filepath.Join(t.TempDir(), "tags.json")))
	if err := s.Load(context.Background()); err != nil {
		t.Errorf("Load() error = %v, want nil for missing file", err)
	}
}

func TestFilePersister_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "tags.json")
	s := New(NewFilePersister(path))
	s.Ensure("z.gif")
	s.Set("m.gif", []string{"dance", "party"})
	s.Ensure("a.gif")
	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := New(NewFilePersister(path))
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Snapshot().Entries(), s.Snapshot().Entries()) {
		t.Errorf("reloaded = %v, want %v", reloaded.Snapshot().Entries(), s.Snapshot().Entries())
	}
}

func TestFilePersister_CorruptDocumentIsBackedUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tags.json")
	original := []byte(`{"a.gif": "not an array"}`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewFilePersister(path)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	_, err := p.Load(context.Background())
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("Load() error = %v, want ErrCorruptState", err)
	}

	backup := path + ".corrupt-20260102-030405"
	got, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(got) != string(original) {
		t.Errorf("backup = %q, want %q", got, original)
	}

	still, _ := os.ReadFile(path)
	if string(still) != string(original) {
		t.Errorf("original modified at load: %q", still)
	}
	if !strings.Contains(err.Error(), backup) {
		t.Errorf("error %q should name the backup", err)
	}
	if !errors.Is(err, ErrBackedUp) {
		t.Errorf("Load() error = %v, want ErrBackedUp", err)
	}
}

func TestFilePersister_CorruptWithoutBackupKeepsOriginal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tags.json")
	original := []byte(`[1, 2, 3]`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}
	// A directory in the way makes the backup write fail.
	if err := os.Mkdir(path+".corrupt-20260102-030405", 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewFilePersister(path)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	s := New(p)

	err := s.Load(context.Background())
	if !errors.Is(err, ErrCorruptState) || errors.Is(err, ErrBackedUp) {
		t.Fatalf("Load() error = %v, want ErrCorruptState without ErrBackedUp", err)
	}

	s.Ensure("new.gif")
	if err := s.Persist(context.Background()); !errors.Is(err, ErrWriteHeld) {
		t.Errorf("Persist() error = %v, want ErrWriteHeld", err)
	}
	if got, _ := os.ReadFile(path); string(got) != string(original) {
		t.Errorf("document = %q, want original %q", got, original)
	}
}

func TestFilePersister_EmptyFileIsCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tags.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(NewFilePersister(path))
	if err := s.Load(context.Background()); !errors.Is(err, ErrCorruptState) {
		t.Errorf("Load() error = %v, want ErrCorruptState", err)
	}
}

func TestFilePersister_SaveFailure(t *testing.T) {
	t.Parallel()

	// Parent "directory" is a regular file, so MkdirAll fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewFilePersister(filepath.Join(blocker, "tags.json"))
	if err := p.Save(context.Background(), Snapshot{}); !errors.Is(err, ErrPersistence) {
		t.Errorf("Save() error = %v, want ErrPersistence", err)
	}
}
