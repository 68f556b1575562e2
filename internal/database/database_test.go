package database

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"giffer/internal/tagstore"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "tags.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoad_FreshDatabaseIsMissing(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	store := tagstore.New(db)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v, want nil for never-saved database", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestSaveLoad_PreservesOrder(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	snap := tagstore.NewSnapshot([]tagstore.Entry{
		{Filename: "zebra.gif", Tags: []string{"stripes", "animal"}},
		{Filename: "apple.gif"},
		{Filename: "mango.gif", Tags: []string{"fruit"}},
	})
	if err := db.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Entries(), snap.Entries()) {
		t.Errorf("Load() = %v, want %v", got.Entries(), snap.Entries())
	}
}

func TestSave_ReplacesPreviousContents(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	first := tagstore.NewSnapshot([]tagstore.Entry{
		{Filename: "a.gif", Tags: []string{"x", "y"}},
		{Filename: "b.gif", Tags: []string{"z"}},
	})
	second := tagstore.NewSnapshot([]tagstore.Entry{
		{Filename: "b.gif", Tags: []string{"new"}},
	})

	if err := db.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Entries(), second.Entries()) {
		t.Errorf("Load() = %v, want %v", got.Entries(), second.Entries())
	}
}

func TestSave_EmptySnapshotIsNotMissing(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, tagstore.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v after saving empty index", err)
	}
	if got.Len() != 0 {
		t.Errorf("Len() = %d, want 0", got.Len())
	}
}

func TestSave_ClosedDatabaseWrapsPersistence(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	db.Close()

	err := db.Save(context.Background(), tagstore.Snapshot{})
	if !errors.Is(err, tagstore.ErrPersistence) {
		t.Errorf("Save() error = %v, want ErrPersistence", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tags.db")
	ctx := context.Background()

	db, err := New(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	store := tagstore.New(db)
	store.Ensure("keep.gif")
	if _, err := store.Set("keep.gif", []string{"forever"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = New(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	reloaded := tagstore.New(db)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if tags, ok := reloaded.Snapshot().Get("keep.gif"); !ok || !reflect.DeepEqual(tags, []string{"forever"}) {
		t.Errorf("keep.gif tags = %v (ok=%v)", tags, ok)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if v, err := db.GetMetadata(ctx, "schema_version"); err != nil || v != schemaVersion {
		t.Errorf("schema_version = %q, %v", v, err)
	}
	if err := db.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMetadata(ctx, "k"); v != "v2" {
		t.Errorf("GetMetadata(k) = %q, want v2", v)
	}
}
