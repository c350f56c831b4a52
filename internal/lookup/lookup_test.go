package lookup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/lineage/internal/cache"
)

func TestTable_QID(t *testing.T) {
	tbl := Table{
		KindPerson: {"1234": "Q100"},
		KindPlace:  {"amsterdam": "Q727"},
	}
	ctx := context.Background()

	qid, err := tbl.QID(ctx, KindPerson, "1234")
	if err != nil || qid != "Q100" {
		t.Fatalf("got %q, %v", qid, err)
	}
	qid, err = tbl.QID(ctx, KindPerson, "9999")
	if err != nil || qid != "" {
		t.Fatalf("unknown id: got %q, %v", qid, err)
	}
	if _, err := (Table{KindPerson: {"1": "bogus"}}).QID(ctx, KindPerson, "1"); err == nil {
		t.Fatal("expected error for non-QID value")
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookup.yaml")
	content := "person:\n  \"1234\": Q100\nplace:\n  amsterdam: Q727\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if qid, _ := tbl.QID(context.Background(), KindPlace, "amsterdam"); qid != "Q727" {
		t.Fatalf("got %q", qid)
	}
}

// countingResolver counts backend hits.
type countingResolver struct {
	table Table
	hits  int
}

func (r *countingResolver) QID(ctx context.Context, kind Kind, id string) (string, error) {
	r.hits++
	return r.table.QID(ctx, kind, id)
}

func TestCached_ReadThrough(t *testing.T) {
	backend := &countingResolver{table: Table{KindPerson: {"1234": "Q100"}}}
	cached := NewCached(backend, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		qid, err := cached.QID(ctx, KindPerson, "1234")
		if err != nil || qid != "Q100" {
			t.Fatalf("got %q, %v", qid, err)
		}
	}
	if backend.hits != 1 {
		t.Fatalf("backend hits = %d, want 1", backend.hits)
	}

	// Misses are cached too.
	for i := 0; i < 3; i++ {
		if qid, _ := cached.QID(ctx, KindPerson, "absent"); qid != "" {
			t.Fatalf("got %q, want empty", qid)
		}
	}
	if backend.hits != 2 {
		t.Fatalf("backend hits = %d, want 2", backend.hits)
	}
}

func TestPossibleLedger(t *testing.T) {
	l := NewPossibleLedger()
	if l.Is("1234", "Q100") {
		t.Fatal("empty ledger")
	}
	l.Add("1234", "Q100")
	if !l.Is("1234", "Q100") {
		t.Fatal("pair lost")
	}
	if l.Is("1234", "Q101") || l.Is("5678", "Q100") {
		t.Fatal("pair keys must not collide")
	}
}
