package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/migrate"
	"sentinel-api/internal/pings"

	_ "github.com/lib/pq"
)

// 需要真实 Postgres：设置 PG_TEST_DSN 后运行
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_PingsRoundTrip(t *testing.T) {
	s := AttachDB(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := pings.Ping{ID: "6f1d9c2e-3b7a-4c55-9a0e-0c1f2d3e4f50", Lat: 51.5, Lng: -0.12, Origin: "random", CreatedAt: now, ExpiresAt: now.Add(3 * time.Second)}
	if err := s.RecordPing(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordPing(ctx, p); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	got, err := s.RecentPings(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, g := range got {
		if g.ID == p.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("ping %s not returned", p.ID)
	}
}

func TestStore_CrimesAndStats(t *testing.T) {
	db := openTestDB(t)
	s := AttachDB(db)
	ctx := context.Background()
	recs := []crime.Record{
		{Month: "2024-01", Type: "Burglary", Lng: -0.15, Lat: 51.53},
		{Month: "2024-01", Type: "Robbery", Lng: -0.15, Lat: 51.53},
		{Month: "2024-01", Type: "Burglary", Lng: 0.1, Lat: 51.4},
	}
	if err := crime.Import(ctx, db, recs); err != nil {
		t.Fatal(err)
	}
	if n, err := s.CrimeCount(ctx); err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	camden := borough.Bounds{North: 51.57, South: 51.51, West: -0.21, East: -0.10}
	got, err := s.CrimesInBounds(ctx, camden, "Burglary", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("in bounds = %+v, %v", got, err)
	}

	before, err := s.GetTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.IncrStats(ctx, true)
	s.IncrStats(ctx, false)
	after, err := s.GetTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if after.TotalRequests-before.TotalRequests != 2 || after.TotalVisitors-before.TotalVisitors != 1 {
		t.Errorf("before=%+v after=%+v", before, after)
	}
}
