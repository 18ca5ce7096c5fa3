package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pettracker/internal/repository/sqlite"
)

func TestMigrate_IndexesOnlyNewSnapshots(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20240501_120000_cam1_0.95_dog.jpg",
		"20240501_120500_cam2_0.91_cat.jpg",
		"holiday.jpg",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	first, err := migrate(ctx, store.Snapshots(), dir)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if first != (result{Inserted: 2, Skipped: 1}) {
		t.Errorf("Expected 2 inserted and 1 skipped, got %+v", first)
	}

	snap, err := store.Snapshots().GetByFilename(ctx, "20240501_120000_cam1_0.95_dog.jpg")
	if err != nil || snap == nil {
		t.Fatalf("GetByFilename = %v, %v", snap, err)
	}
	if snap.CameraID != "cam1" || snap.ClassName != "dog" || snap.FileSize != 4 {
		t.Errorf("unexpected record %+v", snap)
	}

	second, err := migrate(ctx, store.Snapshots(), dir)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if second != (result{Indexed: 2, Skipped: 1}) {
		t.Errorf("Expected 2 already indexed on rerun, got %+v", second)
	}
}

func TestMigrate_MissingDirectory(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	if _, err := migrate(context.Background(), store.Snapshots(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
