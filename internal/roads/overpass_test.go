package roads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sentinel-api/internal/sector"
)

const overpassFixture = `{"elements":[
 {"type":"node","id":1,"lat":51.500,"lon":-0.120},
 {"type":"node","id":2,"lat":51.501,"lon":-0.120},
 {"type":"node","id":3,"lat":51.502,"lon":-0.120},
 {"type":"node","id":4,"lat":51.502,"lon":-0.118},
 {"type":"way","id":10,"nodes":[1,2,3,4]},
 {"type":"way","id":11,"nodes":[4,99]},
 {"type":"way","id":12,"nodes":[]}
]}`

func TestRoads_BuildsLineStrings(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("data")
		_, _ = w.Write([]byte(overpassFixture))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 1e-6)
	fc, err := c.Roads(context.Background(), 51.5, -0.12, 1000, sector.Uniform(40))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "way(around:1000,51.500000,-0.120000)") {
		t.Errorf("query = %q", query)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	f := fc.Features[0]
	if !f.Geometry.IsLineString() {
		t.Fatalf("type = %s", f.Geometry.Type)
	}
	// 共线中间点被简化掉
	if n := len(f.Geometry.LineString); n != 3 {
		t.Errorf("points = %d, want 3", n)
	}
	if f.Properties["probability"] != 40.0 || f.Properties["fillAlpha"] != 102 {
		t.Errorf("properties = %v", f.Properties)
	}
}

func TestBuildFeatures_NoSimplify(t *testing.T) {
	els := []element{
		{Type: "node", ID: 1, Lat: 1, Lon: 1},
		{Type: "node", ID: 2, Lat: 1.5, Lon: 1},
		{Type: "node", ID: 3, Lat: 2, Lon: 1},
		{Type: "way", ID: 5, Nodes: []int64{1, 2, 3}},
	}
	fc := buildFeatures(els, nil, 0)
	if len(fc.Features) != 1 || len(fc.Features[0].Geometry.LineString) != 3 {
		t.Fatalf("unexpected %+v", fc.Features)
	}
	if _, ok := fc.Features[0].Properties["probability"]; ok {
		t.Error("probability set without source")
	}
}

func TestRoads_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, time.Second, 0).Roads(context.Background(), 51.5, -0.12, 500, nil)
	if !errors.Is(err, ErrBadStatus) {
		t.Errorf("err = %v", err)
	}
}
