package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	_ "github.com/nadavnv/smart-home-core/migrations" // registers embedded schema
)

// testSQLiteRepository opens a migrated SQLite database in a temp dir.
func testSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRepositories(t *testing.T) {
	repos := map[string]func(t *testing.T) Repository{
		"sqlite": func(t *testing.T) Repository { return testSQLiteRepository(t) },
		"memory": func(*testing.T) Repository { return NewMemoryRepository() },
	}

	for name, newRepo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)

			d := testLight()
			if err := repo.Insert(ctx, d); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := repo.Insert(ctx, d); !errors.Is(err, ErrDeviceExists) {
				t.Errorf("Insert() duplicate error = %v, want ErrDeviceExists", err)
			}

			got, err := repo.FindByID(ctx, "light01")
			if err != nil {
				t.Fatalf("FindByID() error = %v", err)
			}
			if *got.Parameters.(*LightParameters).Color != "#FFAA00" {
				t.Errorf("FindByID() parameters = %+v", got.Parameters)
			}

			got.Status = "off"
			got.Parameters.(*LightParameters).Brightness = ptr(10)
			if err := repo.Save(ctx, got); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			reloaded, err := repo.FindByID(ctx, "light01")
			if err != nil {
				t.Fatalf("FindByID() error = %v", err)
			}
			if reloaded.Status != "off" || *reloaded.Parameters.(*LightParameters).Brightness != 10 {
				t.Errorf("Save() not persisted: %+v", reloaded)
			}

			ok, err := repo.ExistsByID(ctx, "light01")
			if err != nil || !ok {
				t.Errorf("ExistsByID() = %v, %v, want true, nil", ok, err)
			}

			ids, err := repo.ListIDs(ctx)
			if err != nil || len(ids) != 1 || ids[0] != "light01" {
				t.Errorf("ListIDs() = %v, %v, want [light01]", ids, err)
			}

			all, err := repo.FindAll(ctx)
			if err != nil || len(all) != 1 {
				t.Errorf("FindAll() = %v, %v, want 1 device", all, err)
			}

			if err := repo.Delete(ctx, "light01"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := repo.Delete(ctx, "light01"); !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("Delete() missing error = %v, want ErrDeviceNotFound", err)
			}
			if _, err := repo.FindByID(ctx, "light01"); !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("FindByID() missing error = %v, want ErrDeviceNotFound", err)
			}
			if err := repo.Save(ctx, d); !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("Save() missing error = %v, want ErrDeviceNotFound", err)
			}

			ids, err = repo.ListIDs(ctx)
			if err != nil || len(ids) != 0 {
				t.Errorf("ListIDs() empty = %v, %v, want []", ids, err)
			}
		})
	}
}
