package search

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"service-marketplace/internal/models"
)

func provider(name string, lng, lat float64) models.User {
	return models.User{
		Name: name,
		ServiceProvider: &models.ServiceProviderProfile{
			Location: models.NewGeoPoint(lng, lat),
		},
	}
}

func TestApplyGeoFiltersByRadius(t *testing.T) {
	// Origin: central Berlin
	origin := models.NewGeoPoint(13.404954, 52.520008)

	results := []Result{
		{Provider: provider("near", 13.41, 52.52), Score: 0.9},
		{Provider: provider("far", 13.7, 52.9), Score: 0.95},
		{Provider: provider("no location", 0, 0), Score: 0.99},
	}
	results[2].Provider.ServiceProvider.Location = nil

	out := applyGeo(results, origin, 10)
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(out), out)
	}
	if out[0].Provider.Name != "near" {
		t.Errorf("kept %q, want near", out[0].Provider.Name)
	}
	if out[0].DistanceKm <= 0 || out[0].DistanceKm > 10 {
		t.Errorf("distance = %v", out[0].DistanceKm)
	}
}

func TestApplyGeoNoOriginKeepsAll(t *testing.T) {
	results := []Result{
		{Provider: provider("a", 13.4, 52.5)},
		{Provider: provider("b", 2.35, 48.85)},
	}
	out := applyGeo(results, nil, 10)
	if len(out) != 2 {
		t.Errorf("got %d results, want 2", len(out))
	}
}

func TestRankDistanceThenScore(t *testing.T) {
	results := []Result{
		{Provider: models.User{Name: "far-good"}, DistanceKm: 20, Score: 0.95},
		{Provider: models.User{Name: "near-ok"}, DistanceKm: 2, Score: 0.6},
		{Provider: models.User{Name: "near-good"}, DistanceKm: 2, Score: 0.9},
	}
	rank(results)

	want := []string{"near-good", "near-ok", "far-good"}
	for i, name := range want {
		if results[i].Provider.Name != name {
			t.Errorf("position %d = %q, want %q", i, results[i].Provider.Name, name)
		}
	}
}

func TestPaginate(t *testing.T) {
	results := []Result{
		{Provider: models.User{Name: "a"}},
		{Provider: models.User{Name: "b"}},
		{Provider: models.User{Name: "c"}},
	}

	page := paginate(results, 1, 1)
	if len(page) != 1 || page[0].Provider.Name != "b" {
		t.Errorf("page = %+v, want [b]", page)
	}

	if page := paginate(results, 0, 10); len(page) != 3 {
		t.Errorf("oversized limit should return everything, got %d", len(page))
	}
	if page := paginate(results, 5, 10); page != nil {
		t.Errorf("offset past the end should return nothing, got %+v", page)
	}
}

func TestBuildVectorPipeline(t *testing.T) {
	vec := []float32{0.1, 0.2}
	p := Params{Query: "dog trainer", Limit: 20, Offset: 40, Category: "pets"}

	pipeline := buildVectorPipeline(vec, p)
	if len(pipeline) != 2 {
		t.Fatalf("pipeline stages = %d, want 2", len(pipeline))
	}

	stage := pipeline[0]
	if stage[0].Key != "$vectorSearch" {
		t.Fatalf("first stage = %q", stage[0].Key)
	}
	// The index fetch covers offset plus limit so later pages exist.
	spec := stage[0].Value.(bson.D)
	for _, e := range spec {
		if e.Key == "limit" && e.Value.(int) != 60 {
			t.Errorf("vector limit = %v, want 60", e.Value)
		}
	}
}
