package sector

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"sentinel-api/internal/geodesic"
)

var london = geodesic.Point{Lon: -0.1276, Lat: 51.5074}

func sum(ss []Sector) float64 {
	t := 0.0
	for _, s := range ss {
		t += s.Probability
	}
	return t
}

func TestGenerate_LondonEightSectors(t *testing.T) {
	ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: 8}, NewRandomSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(ss) != 8 {
		t.Fatalf("got %d sectors, want 8", len(ss))
	}
	if ss[0].StartBearing != 0 || ss[0].EndBearing != 45 {
		t.Errorf("sector 0 spans [%v,%v), want [0,45)", ss[0].StartBearing, ss[0].EndBearing)
	}
	for i, s := range ss {
		if s.Index != i {
			t.Errorf("sector %d has index %d", i, s.Index)
		}
		if s.EndBearing-s.StartBearing != 45 {
			t.Errorf("sector %d span %v", i, s.EndBearing-s.StartBearing)
		}
		if len(s.Polygon) != 13 {
			t.Errorf("sector %d has %d vertices, want 13", i, len(s.Polygon))
		}
		if s.Polygon[0] != london || s.Polygon[len(s.Polygon)-1] != london {
			t.Errorf("sector %d ring not anchored at center", i)
		}
		for _, p := range s.Polygon[1 : len(s.Polygon)-1] {
			if d := geodesic.Distance(london, p); math.Abs(d-1000) > 1e-6 {
				t.Errorf("sector %d arc point %v at %vm", i, p, d)
			}
		}
	}
}

func TestGenerate_ArcEndpointsMatchBearings(t *testing.T) {
	ss, err := Generate(Params{Center: london, Radius: 500, Sectors: 4, PointsPerSector: 3}, Uniform(1))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range ss {
		if len(s.Polygon) != 3+3 {
			t.Fatalf("sector %d has %d vertices", s.Index, len(s.Polygon))
		}
		first := geodesic.DestinationPoint(london, 500, s.StartBearing)
		last := geodesic.DestinationPoint(london, 500, s.EndBearing)
		if s.Polygon[1] != first {
			t.Errorf("sector %d first arc point %v, want %v", s.Index, s.Polygon[1], first)
		}
		if s.Polygon[len(s.Polygon)-2] != last {
			t.Errorf("sector %d last arc point %v, want %v", s.Index, s.Polygon[len(s.Polygon)-2], last)
		}
	}
	// 相邻扇区共享边界射线
	for i := 0; i < len(ss)-1; i++ {
		if ss[i].Polygon[len(ss[i].Polygon)-2] != ss[i+1].Polygon[1] {
			t.Errorf("sectors %d/%d do not share a boundary", i, i+1)
		}
	}
}

func TestGenerate_SpansPartitionCircle(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7, 8, 12, 360} {
		ss, err := Generate(Params{Center: london, Radius: 100, Sectors: n, PointsPerSector: 1}, Uniform(1))
		if err != nil {
			t.Fatal(err)
		}
		if ss[0].StartBearing != 0 {
			t.Errorf("n=%d: first start %v", n, ss[0].StartBearing)
		}
		for i := 1; i < n; i++ {
			if ss[i].StartBearing != ss[i-1].EndBearing {
				t.Errorf("n=%d: gap/overlap between %d and %d", n, i-1, i)
			}
		}
		if math.Abs(ss[n-1].EndBearing-360) > 1e-9 {
			t.Errorf("n=%d: last end %v", n, ss[n-1].EndBearing)
		}
	}
}

func TestGenerate_ProbabilitiesSumTo100(t *testing.T) {
	cases := [][]float64{
		{1, 2, 3, 4},
		{0.1, 0.2, 0.3, 0.2, 0.2},
		{0, 0, 7},
		{99, 1},
	}
	for _, probs := range cases {
		ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: len(probs), Probabilities: probs}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(sum(ss)-100) > 1e-9 {
			t.Errorf("%v: sum %v", probs, sum(ss))
		}
	}
}

func TestGenerate_AllZeroProbabilities(t *testing.T) {
	ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: 3, Probabilities: []float64{0, 0, 0}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range ss {
		if s.Probability != 0 || math.IsNaN(s.Probability) || s.FillAlpha != 0 {
			t.Errorf("sector %d: probability %v alpha %d", s.Index, s.Probability, s.FillAlpha)
		}
	}
}

func TestGenerate_ZeroOrNegativeSectors(t *testing.T) {
	for _, n := range []int{0, -1, -8} {
		ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: n}, nil)
		if err != nil {
			t.Errorf("n=%d: %v", n, err)
		}
		if ss == nil || len(ss) != 0 {
			t.Errorf("n=%d: got %v, want empty", n, ss)
		}
	}
}

func TestGenerate_PartialProbabilitiesUseSource(t *testing.T) {
	// 预测仅覆盖前两个扇区，其余由占位来源补齐
	ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: 4, Probabilities: []float64{30, 10}}, Uniform(30))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{30, 10, 30, 30}
	for i, s := range ss {
		if math.Abs(s.Probability-want[i]) > 1e-9 {
			t.Errorf("sector %d = %v, want %v", i, s.Probability, want[i])
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	p := Params{Center: london, Radius: 750, Sectors: 6}
	a, err := Generate(p, NewRandomSource(42))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(p, NewRandomSource(42))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different sector sets")
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	cases := map[string]Params{
		"nan center":      {Center: geodesic.Point{Lon: math.NaN(), Lat: 51}, Radius: 1, Sectors: 8},
		"inf center":      {Center: geodesic.Point{Lon: 0, Lat: math.Inf(-1)}, Radius: 1, Sectors: 8},
		"lat range":       {Center: geodesic.Point{Lon: 0, Lat: 95}, Radius: 1, Sectors: 8},
		"negative radius": {Center: london, Radius: -1, Sectors: 8},
		"nan radius":      {Center: london, Radius: math.NaN(), Sectors: 8},
		"negative points": {Center: london, Radius: 1, Sectors: 8, PointsPerSector: -2},
		"negative prob":   {Center: london, Radius: 1, Sectors: 2, Probabilities: []float64{1, -1}},
		"nan prob":        {Center: london, Radius: 1, Sectors: 2, Probabilities: []float64{math.NaN(), 1}},
		"missing source":  {Center: london, Radius: 1, Sectors: 3, Probabilities: []float64{1}},
	}
	for name, p := range cases {
		if _, err := Generate(p, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
	// 非法中心点优先于空扇区
	_, err := Generate(Params{Center: geodesic.Point{Lon: math.NaN()}, Sectors: 0}, nil)
	if !errors.Is(err, geodesic.ErrInvalidCoordinate) {
		t.Errorf("nan center with zero sectors: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{1, 1, 2})
	want := []float64{25, 25, 50}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
	if z := Normalize([]float64{0, 0}); z[0] != 0 || z[1] != 0 {
		t.Errorf("zero sum = %v", z)
	}
	if e := Normalize(nil); len(e) != 0 {
		t.Errorf("nil = %v", e)
	}
}

func TestFillAlpha(t *testing.T) {
	cases := map[float64]uint8{0: 0, 100: 255, 50: 128, 12.5: 32, -3: 0, 140: 255}
	for p, want := range cases {
		if got := FillAlpha(p); got != want {
			t.Errorf("FillAlpha(%v) = %d, want %d", p, got, want)
		}
	}
}

func TestRandomSource_Concurrent(t *testing.T) {
	src := NewRandomSource(7)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := src.Probability(j)
				if v < 0 || v >= 100 {
					t.Errorf("out of range %v", v)
				}
			}
		}()
	}
	wg.Wait()
}

func TestFeatureCollection(t *testing.T) {
	ss, err := Generate(Params{Center: london, Radius: 1000, Sectors: 2, Probabilities: []float64{1, 3}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	fc := FeatureCollection(ss)
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	f := fc.Features[1]
	if !f.Geometry.IsPolygon() {
		t.Fatalf("geometry = %s", f.Geometry.Type)
	}
	if n := len(f.Geometry.Polygon[0]); n != 13 {
		t.Errorf("ring length %d", n)
	}
	if a := f.Properties["fillAlpha"]; a != 191 {
		t.Errorf("fillAlpha = %v", a)
	}
	if _, err := fc.MarshalJSON(); err != nil {
		t.Fatal(err)
	}
}
