package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/database"
	_ "github.com/nadavnv/smart-home-core/migrations" // registers embedded schema
)

func testRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
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

func TestSQLiteRepositoryCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := testRepository(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: "created", DeviceID: "light01", DeviceType: "light", Origin: "local", Actor: "alice", CreatedAt: base},
		{Action: "updated", DeviceID: "light01", DeviceType: "light", Origin: "replicated", CreatedAt: base.Add(time.Minute),
			Details: map[string]any{"status": "on"}},
		{Action: "created", DeviceID: "ac01", DeviceType: "air_conditioner", Origin: "local", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() did not assign an ID")
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 3, "ac01"},
		{"by device", Filter{DeviceID: "light01"}, 2, "light01"},
		{"by action", Filter{Action: "created"}, 2, "ac01"},
		{"by origin", Filter{Origin: "replicated"}, 1, "light01"},
		{"no match", Filter{DeviceID: "nope"}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal || len(got.Entries) != tt.wantTotal {
				t.Fatalf("List() total = %d, entries = %d, want %d", got.Total, len(got.Entries), tt.wantTotal)
			}
			if tt.wantFirst != "" && got.Entries[0].DeviceID != tt.wantFirst {
				t.Errorf("List() first = %q, want %q", got.Entries[0].DeviceID, tt.wantFirst)
			}
			if got.Limit != defaultLimit {
				t.Errorf("List() limit = %d, want %d", got.Limit, defaultLimit)
			}
		})
	}

	got, err := repo.List(ctx, Filter{Origin: "replicated"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	e := got.Entries[0]
	if e.Actor != "" || e.Details["status"] != "on" || !e.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("List() entry = %+v", e)
	}
}

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{Filter{}, defaultLimit, 0},
		{Filter{Limit: 10, Offset: 5}, 10, 5},
		{Filter{Limit: 1000, Offset: -1}, maxLimit, 0},
	}
	for _, tt := range tests {
		f := tt.in
		f.normalize()
		if f.Limit != tt.wantLimit || f.Offset != tt.wantOffset {
			t.Errorf("normalize(%+v) = %d/%d, want %d/%d", tt.in, f.Limit, f.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestWhereClausePlaceholders(t *testing.T) {
	where, args := whereClause(Filter{Action: "updated", Origin: "local"}, func(n int) string {
		return "$" + string(rune('0'+n))
	})
	if where != "WHERE action = $1 AND origin = $2" {
		t.Errorf("whereClause() = %q", where)
	}
	if len(args) != 2 || args[0] != "updated" || args[1] != "local" {
		t.Errorf("whereClause() args = %v", args)
	}
}
