package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"pettracker/internal/model"
	"pettracker/internal/repository"
	"pettracker/internal/repository/sqlite"
	"pettracker/internal/service/storage"
)

// migrate indexes snapshot files that are on disk but missing from the
// database, e.g. after restoring a backup of the snapshot directory.
func main() {
	cliApp := &cli.App{
		Name:  "migrate",
		Usage: "index existing snapshot files into the SQLite database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "snapshots", Value: "app/snapshots", Usage: "directory containing snapshots"},
			&cli.StringFlag{Name: "db", Value: "data/pettracker.db", Usage: "database path"},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(c *cli.Context) error {
	dir, dbPath := c.String("snapshots"), c.String("db")
	fmt.Printf("Migrating snapshots from %s to database %s\n", dir, dbPath)

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	res, err := migrate(c.Context, store.Snapshots(), dir)
	if err != nil {
		return err
	}

	if res.Inserted == 0 && res.Indexed == 0 {
		fmt.Println("No snapshots found to migrate")
	} else {
		fmt.Printf("✅ Migrated %d snapshots (%d already indexed)\n", res.Inserted, res.Indexed)
	}
	if res.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name or unreadable)\n", res.Skipped)
	}
	return nil
}

type result struct {
	Inserted int // new records
	Indexed  int // files that already had a record
	Skipped  int // files that could not be parsed or read
}

// migrate inserts a record for every snapshot in dir that the repository
// does not know yet.
func migrate(ctx context.Context, repo repository.SnapshotRepository, dir string) (result, error) {
	var res result
	files, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var missing []model.Snapshot
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		existing, err := repo.GetByFilename(ctx, file.Name())
		if err != nil {
			return res, fmt.Errorf("failed to look up %s: %w", file.Name(), err)
		}
		if existing != nil {
			res.Indexed++
			continue
		}

		snap, err := storage.ParseSnapshotFilename(file.Name(), time.Local)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			res.Skipped++
			continue
		}
		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to stat %s: %v", file.Name(), err)
			res.Skipped++
			continue
		}

		snap.FilePath = filepath.Join(dir, file.Name())
		snap.FileSize = info.Size()
		missing = append(missing, snap)
	}

	if len(missing) == 0 {
		return res, nil
	}
	fmt.Printf("Inserting %d snapshots into database...\n", len(missing))
	res.Inserted, err = repo.InsertBatch(ctx, missing)
	if err != nil {
		return res, fmt.Errorf("failed to insert snapshots: %w", err)
	}
	return res, nil
}
