package history

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/database"
	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
	"github.com/nerrad567/govee-local-bridge/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

var base = time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	entries := []Entry{
		{ID: "a", Address: "gvld_0", Driver: "GPV", Value: 1, Status: report.StatusDelivered, CreatedAt: base},
		{ID: "b", Address: "gvld_0", Driver: "GPV", Value: 0, Status: report.StatusRejected, Error: "report: controller did not confirm", CreatedAt: base.Add(500 * time.Millisecond)},
		{ID: "c", Address: "gvld_1", Driver: "ST", Value: 101, Status: report.StatusSkipped, CreatedAt: base.Add(time.Second)},
		{ID: "d", Address: "controller", Driver: "GPV", Value: 1, Text: "NodeServer%20Running", Status: report.StatusDelivered, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range entries {
		if err := repo.Create(context.Background(), &entries[i]); err != nil {
			t.Fatalf("Create(%s) error = %v", entries[i].ID, err)
		}
	}
}

func TestSQLiteRepository_CreateRequiresID(t *testing.T) {
	repo := openTestRepo(t)
	if err := repo.Create(context.Background(), &Entry{Address: "gvld_0"}); err == nil {
		t.Error("Create() without id should fail")
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := openTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	tests := []struct {
		name      string
		filter    Filter
		wantIDs   []string
		wantTotal int
	}{
		{"all newest first", Filter{}, []string{"d", "c", "b", "a"}, 4},
		{"by address", Filter{Address: "gvld_0"}, []string{"b", "a"}, 2},
		{"by status", Filter{Status: report.StatusDelivered}, []string{"d", "a"}, 2},
		{"paged", Filter{Limit: 2, Offset: 1}, []string{"c", "b"}, 4},
		{"limit clamped", Filter{Limit: 1000}, []string{"d", "c", "b", "a"}, 4},
		{"no match", Filter{Address: "gvld_9"}, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) != len(tt.wantIDs) {
				t.Fatalf("entries = %d, want %d", len(res.Entries), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if res.Entries[i].ID != id {
					t.Errorf("entry %d = %s, want %s", i, res.Entries[i].ID, id)
				}
			}
		})
	}
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	seed(t, repo)

	res, err := repo.List(context.Background(), Filter{Address: "gvld_0", Status: report.StatusRejected})
	if err != nil {
		t.Fatal(err)
	}
	got := res.Entries[0]
	if got.Error != "report: controller did not confirm" || got.Value != 0 {
		t.Errorf("entry = %+v", got)
	}
	if !got.CreatedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := openTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	n, err := repo.Prune(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("Total after prune = %d, want 2", res.Total)
	}
}

func TestRecorder_ObservePush(t *testing.T) {
	repo := openTestRepo(t)
	rec := NewRecorder(repo, nil)

	rec.ObservePush(report.Result{
		ID:        "push-1",
		Address:   "gvld_0",
		Driver:    node.DriverText,
		Value:     1,
		Text:      "hello",
		Transport: report.TransportDirect,
		Status:    report.StatusDelivered,
		Duration:  3 * time.Millisecond,
		At:        base,
	})
	// Results without an id are not recorded
	rec.ObservePush(report.Result{Address: "gvld_0"})

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Fatalf("Total = %d, want 1", res.Total)
	}
	got := res.Entries[0]
	if got.ID != "push-1" || got.Driver != "GPV" || got.Transport != "direct" || got.DurationMS != 3 {
		t.Errorf("entry = %+v", got)
	}
}

// failingRepo counts Prune calls and fails Create.
type failingRepo struct {
	mu     sync.Mutex
	prunes int
}

func (f *failingRepo) Create(context.Context, *Entry) error { return errors.New("disk full") }

func (f *failingRepo) List(context.Context, Filter) (*ListResult, error) { return &ListResult{}, nil }

func (f *failingRepo) Prune(context.Context, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes++
	return 1, nil
}

func (f *failingRepo) pruneCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prunes
}

func TestRecorder_CreateErrorIsLogged(t *testing.T) {
	rec := NewRecorder(&failingRepo{}, nil)
	// Must not panic or block
	rec.ObservePush(report.Result{ID: "x", Status: report.StatusFailed})
}

func TestRecorder_RunRetention(t *testing.T) {
	repo := &failingRepo{}
	rec := NewRecorder(repo, nil)

	rec.RunRetention(context.Background(), 0, time.Millisecond)
	if repo.pruneCount() != 0 {
		t.Fatal("RunRetention with keep=0 should not prune")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.RunRetention(ctx, time.Hour, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for repo.pruneCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("retention did not run twice")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done
}
