// Package search finds service providers by semantic similarity and
// proximity, with a text/geo fallback when vector search is unavailable.
package search

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"service-marketplace/internal/models"
	"service-marketplace/pkg/config"
	"service-marketplace/pkg/database"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/geography"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/metrics"
)

// vectorIndexName is the Atlas search index on users.embedding.
const vectorIndexName = "vector_index_search"

// Embedder turns the query text into the same vector space as stored
// provider embeddings.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Params is a provider search request. Offset and Limit paginate the final
// ranked order; filtering and ranking always happen before pagination.
type Params struct {
	Query    string
	Location *models.GeoPoint
	RadiusKm float64
	Category string
	Limit    int
	Offset   int
}

// Result is one ranked provider.
type Result struct {
	Provider   models.User `json:"provider"`
	Score      float64     `json:"score"`
	DistanceKm float64     `json:"distanceKm"`
}

// Response carries the ranked providers. UsedFallback is true when vector
// search was skipped or failed and the text/geo path produced the results.
type Response struct {
	Results      []Result `json:"results"`
	UsedFallback bool     `json:"usedFallback"`
}

type Engine struct {
	db       *database.DB
	embedder Embedder

	minScore      float64
	defaultRadius float64
	defaultLimit  int

	log       *logging.ComponentLogger
	mSearches *metrics.CounterVec
}

func NewEngine(db *database.DB, embedder Embedder, cfg *config.Config, log *logging.Logger) *Engine {
	return &Engine{
		db:            db,
		embedder:      embedder,
		minScore:      cfg.SearchMinScore,
		defaultRadius: cfg.SearchRadiusKm,
		defaultLimit:  cfg.SearchLimit,
		log:           log.WithComponent("search"),
		mSearches:     metrics.Default.CounterVec("search_queries", "Provider searches by path", "path"),
	}
}

// Search runs the vector path first and falls back to regex plus geo
// filtering when the vector path errors or returns nothing.
func (e *Engine) Search(ctx context.Context, p Params) (*Response, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, errs.NewValidation("search.Search", "query is required", nil)
	}
	if p.Limit <= 0 || p.Limit > e.defaultLimit {
		p.Limit = e.defaultLimit
	}
	if p.RadiusKm <= 0 {
		p.RadiusKm = e.defaultRadius
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	results, err := e.vectorSearch(ctx, p)
	if err != nil {
		e.log.Warn("vector search failed, using fallback",
			logging.String("query", p.Query),
			logging.String("error", err.Error()))
	}
	if err == nil && len(results) > 0 {
		e.mSearches.With("vector").Inc(1)
		return &Response{Results: results}, nil
	}

	fallback, err := e.fallbackSearch(ctx, p)
	if err != nil {
		return nil, err
	}
	e.mSearches.With("fallback").Inc(1)
	return &Response{Results: fallback, UsedFallback: true}, nil
}

func (e *Engine) vectorSearch(ctx context.Context, p Params) ([]Result, error) {
	vec, err := e.embedder.Generate(ctx, p.Query)
	if err != nil {
		return nil, err
	}

	pipeline := buildVectorPipeline(vec, p)

	ctx, cancel := e.db.WithReadTimeout(ctx)
	defer cancel()

	cur, err := e.db.Users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.NewDB("search.vectorSearch", "vector aggregation failed", err)
	}
	defer cur.Close(ctx)

	var raw []struct {
		models.User `bson:",inline"`
		Score       float64 `bson:"searchScore"`
	}
	if err := cur.All(ctx, &raw); err != nil {
		return nil, errs.NewDB("search.vectorSearch", "decode failed", err)
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.Score < e.minScore {
			continue
		}
		results = append(results, Result{Provider: r.User, Score: r.Score})
	}
	results = applyGeo(results, p.Location, p.RadiusKm)
	rank(results)
	return paginate(results, p.Offset, p.Limit), nil
}

// buildVectorPipeline assembles the $vectorSearch aggregation. Role and
// account state filtering happens inside the index so candidates are not
// wasted on unbookable users.
func buildVectorPipeline(vec []float32, p Params) mongo.Pipeline {
	filter := bson.D{
		{Key: "role", Value: models.RoleProvider},
		{Key: "verificationStatus", Value: models.VerificationVerified},
		{Key: "isActive", Value: true},
		{Key: "isBanned", Value: false},
	}
	if p.Category != "" {
		filter = append(filter, bson.E{Key: "serviceProvider.serviceCategories", Value: p.Category})
	}

	// The index must return enough candidates to cover the requested page.
	fetch := p.Limit + p.Offset
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: vectorIndexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: vec},
			{Key: "numCandidates", Value: fetch * 10},
			{Key: "limit", Value: fetch},
			{Key: "filter", Value: filter},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "searchScore", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

// fallbackSearch matches the query against name, bio, profession,
// business name, skills and categories with a case-insensitive regex,
// optionally ordered by proximity through $geoNear.
func (e *Engine) fallbackSearch(ctx context.Context, p Params) ([]Result, error) {
	pattern := regexp.QuoteMeta(strings.TrimSpace(p.Query))
	re := bson.D{{Key: "$regex", Value: pattern}, {Key: "$options", Value: "i"}}

	match := bson.D{
		{Key: "role", Value: models.RoleProvider},
		{Key: "verificationStatus", Value: models.VerificationVerified},
		{Key: "isActive", Value: true},
		{Key: "isBanned", Value: false},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "bio", Value: re}},
			bson.D{{Key: "serviceProvider.profession", Value: re}},
			bson.D{{Key: "serviceProvider.businessName", Value: re}},
			bson.D{{Key: "serviceProvider.skills", Value: re}},
			bson.D{{Key: "serviceProvider.serviceCategories", Value: re}},
		}},
	}
	if p.Category != "" {
		match = append(match, bson.E{Key: "serviceProvider.serviceCategories", Value: p.Category})
	}

	var pipeline mongo.Pipeline
	if p.Location != nil {
		pipeline = append(pipeline, bson.D{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: p.Location},
			{Key: "key", Value: "serviceProvider.location"},
			{Key: "distanceField", Value: "distanceMeters"},
			{Key: "maxDistance", Value: p.RadiusKm * 1000},
			{Key: "query", Value: match},
			{Key: "spherical", Value: true},
		}}})
	} else {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{
			{Key: "serviceProvider.averageRating", Value: -1},
		}}})
	}
	if p.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: p.Offset}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: p.Limit}})

	ctx, cancel := e.db.WithReadTimeout(ctx)
	defer cancel()

	cur, err := e.db.Users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.NewDB("search.fallbackSearch", "fallback aggregation failed", err)
	}
	defer cur.Close(ctx)

	var raw []struct {
		models.User    `bson:",inline"`
		DistanceMeters float64 `bson:"distanceMeters"`
	}
	if err := cur.All(ctx, &raw); err != nil {
		return nil, errs.NewDB("search.fallbackSearch", "decode failed", err)
	}

	// Ordering comes from the pipeline: $geoNear emits nearest first, and
	// the no-location path sorts by rating.
	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		results = append(results, Result{Provider: r.User, DistanceKm: r.DistanceMeters / 1000})
	}
	return results, nil
}

// applyGeo computes distances from the given origin and drops providers
// outside the radius. Providers without a stored location are kept with a
// zero distance when no origin is given, dropped otherwise.
func applyGeo(results []Result, origin *models.GeoPoint, radiusKm float64) []Result {
	if origin == nil {
		return results
	}
	from := geography.Point{Lng: origin.Lng(), Lat: origin.Lat()}

	out := results[:0]
	for _, r := range results {
		loc := r.Provider.ServiceProvider
		if loc == nil || loc.Location == nil {
			continue
		}
		to := geography.Point{Lng: loc.Location.Lng(), Lat: loc.Location.Lat()}
		d := geography.HaversineKm(from, to)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		r.DistanceKm = d
		out = append(out, r)
	}
	return out
}

// rank orders results by distance ascending, then score descending.
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].Score > results[j].Score
	})
}

// paginate slices the ranked results to the requested page.
func paginate(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
