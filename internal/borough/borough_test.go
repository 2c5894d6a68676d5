package borough

import (
	"errors"
	"math/rand"
	"regexp"
	"testing"
	"time"
)

const ladFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"LAD13CD": "E09000007", "LAD13NM": "Camden"},
     "geometry": {"type": "Polygon", "coordinates": [[[-0.20,51.52],[-0.10,51.52],[-0.10,51.58],[-0.20,51.58],[-0.20,51.52]]]}},
    {"type": "Feature",
     "properties": {"LAD13CD": "E09000033", "LAD13NM": "Westminster"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[-0.20,51.48],[-0.10,51.48],[-0.10,51.52],[-0.20,51.52],[-0.20,51.48]]],
        [[[-0.30,51.40],[-0.25,51.40],[-0.25,51.45],[-0.30,51.45],[-0.30,51.40]]]
     ]}},
    {"type": "Feature",
     "properties": {"LAD13CD": "E07000001", "LAD13NM": "Elsewhere"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,52],[2,52],[2,53],[1,53],[1,52]]]}},
    {"type": "Feature",
     "properties": {"name": "City of London"},
     "geometry": {"type": "Polygon", "coordinates": [[[-0.10,51.50],[-0.07,51.50],[-0.07,51.52],[-0.10,51.52],[-0.10,51.50]]]}}
  ]
}`

func fixtureSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := ParseSnapshot([]byte(ladFixture), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestParseSnapshot_FiltersLondon(t *testing.T) {
	snap := fixtureSnapshot(t)
	if len(snap.Boroughs) != 3 {
		t.Fatalf("boroughs = %d, want 3", len(snap.Boroughs))
	}
	if len(snap.Collection.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(snap.Collection.Features))
	}
	for _, b := range snap.Boroughs {
		if b.Name == "Elsewhere" {
			t.Fatal("non-London borough kept")
		}
	}
	if snap.Boroughs[2].Name != "City of London" {
		t.Errorf("fallback name = %q", snap.Boroughs[2].Name)
	}
}

func TestParseSnapshot_ColorsAndBounds(t *testing.T) {
	snap := fixtureSnapshot(t)
	re := regexp.MustCompile(`^rgb\((\d+),(\d+),(\d+)\)$`)
	for _, b := range snap.Boroughs {
		if !re.MatchString(b.Color) {
			t.Errorf("%s color %q", b.Name, b.Color)
		}
	}
	for _, f := range snap.Collection.Features {
		if _, err := f.PropertyString("fillColor"); err != nil {
			t.Errorf("feature missing fillColor: %v", err)
		}
	}
	w := snap.Boroughs[1]
	want := Bounds{North: 51.52, South: 51.40, West: -0.30, East: -0.10}
	if w.Bounds != want {
		t.Errorf("westminster bounds = %+v, want %+v", w.Bounds, want)
	}
}

func TestParseSnapshot_Errors(t *testing.T) {
	if _, err := ParseSnapshot([]byte("not json"), nil); err == nil {
		t.Error("expected parse error")
	}
	empty := `{"type":"FeatureCollection","features":[]}`
	if _, err := ParseSnapshot([]byte(empty), nil); !errors.Is(err, ErrNoBoroughs) {
		t.Errorf("empty: %v", err)
	}
}

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex(fixtureSnapshot(t), 16, time.Minute)
	cases := []struct {
		lng, lat float64
		want     string
	}{
		{-0.15, 51.55, "Camden"},
		{-0.15, 51.50, "Westminster"},
		{-0.27, 51.42, "Westminster"},
		{-0.08, 51.51, "City of London"},
		{0.30, 51.30, ""},
	}
	for _, c := range cases {
		for round := 0; round < 2; round++ {
			b, ok := idx.Lookup(c.lng, c.lat)
			if c.want == "" {
				if ok {
					t.Errorf("(%v,%v) round %d: got %s, want none", c.lng, c.lat, round, b.Name)
				}
				continue
			}
			if !ok || b.Name != c.want {
				t.Errorf("(%v,%v) round %d: got %q/%v, want %q", c.lng, c.lat, round, b.Name, ok, c.want)
			}
		}
	}
	// 不在任何 borough 内的点不入缓存
	if idx.cache.len() != len(cases)-1 {
		t.Errorf("cache entries = %d, want %d", idx.cache.len(), len(cases)-1)
	}
}

func TestIndex_LookupAcrossBoundaryInOneCell(t *testing.T) {
	north := [2]float64{-0.15, 51.5202}
	south := [2]float64{-0.15, 51.5198}
	if geohash(north[1], north[0], 7) != geohash(south[1], south[0], 7) {
		t.Fatal("test points must share a geohash cell")
	}

	cold := NewIndex(fixtureSnapshot(t), 16, time.Minute)
	want, ok := cold.Lookup(south[0], south[1])
	if !ok || want.Name != "Westminster" {
		t.Fatalf("cold south = %q/%v", want.Name, ok)
	}

	warm := NewIndex(fixtureSnapshot(t), 16, time.Minute)
	if b, ok := warm.Lookup(north[0], north[1]); !ok || b.Name != "Camden" {
		t.Fatalf("north = %q/%v", b.Name, ok)
	}
	for round := 0; round < 2; round++ {
		if b, ok := warm.Lookup(south[0], south[1]); !ok || b.Name != want.Name {
			t.Errorf("round %d: south = %q/%v, want %q", round, b.Name, ok, want.Name)
		}
		if b, ok := warm.Lookup(north[0], north[1]); !ok || b.Name != "Camden" {
			t.Errorf("round %d: north = %q/%v, want Camden", round, b.Name, ok)
		}
	}
}

func TestIndex_LookupReturnsContainingFeature(t *testing.T) {
	// 同名两要素：命中缓存后仍应返回包含该点的那个要素
	snap := fixtureSnapshot(t)
	dup := snap.Boroughs[0]
	dup.Color = "rgba(1, 2, 3, 0.5)"
	dup.Shape = snap.Boroughs[1].Shape
	dup.Bounds = snap.Boroughs[1].Bounds
	snap.Boroughs = append([]Borough{snap.Boroughs[0]}, dup)
	idx := NewIndex(snap, 16, time.Minute)
	for round := 0; round < 2; round++ {
		b, ok := idx.Lookup(-0.15, 51.50)
		if !ok || b.Color != dup.Color {
			t.Errorf("round %d: got %q/%v, want duplicate feature", round, b.Color, ok)
		}
	}
}

func TestIndex_BoundsAndNames(t *testing.T) {
	idx := NewIndex(fixtureSnapshot(t), 4, time.Minute)
	names := idx.Names()
	want := []string{"Camden", "City of London", "Westminster"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if b := idx.BoundsByName()["Camden"]; !b.Contains(-0.10, 51.58) {
		t.Errorf("camden bounds not inclusive: %+v", b)
	}
}

func TestIndex_SwapPurgesCache(t *testing.T) {
	idx := NewIndex(fixtureSnapshot(t), 4, time.Minute)
	idx.Lookup(-0.15, 51.55)
	idx.Swap(fixtureSnapshot(t))
	if idx.cache.len() != 0 {
		t.Errorf("cache not purged: %d", idx.cache.len())
	}
}

func TestLookupCache_EvictionAndExpiry(t *testing.T) {
	c := newLookupCache(2, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }
	c.set("a", 1)
	c.set("b", 2)
	c.get("a")
	c.set("c", 3)
	if _, ok := c.get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.get("a"); !ok || v != 1 {
		t.Errorf("a = %d,%v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.get("a"); ok {
		t.Error("a should have expired")
	}
}

func TestGeohash(t *testing.T) {
	// 参考值：(57.64911, 10.40744) → u4pruydqqvj
	if got := geohash(57.64911, 10.40744, 11); got != "u4pruydqqvj" {
		t.Errorf("geohash = %s", got)
	}
	if got := geohash(51.5074, -0.1276, 5); got != "gcpvj" {
		t.Errorf("london geohash = %s", got)
	}
}
