// Package geocode resolves free-form addresses to coordinates through the
// Google Maps geocoding API.
package geocode

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"service-marketplace/internal/models"
	"service-marketplace/pkg/circuit"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/geography"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/utils"
)

type Geocoder struct {
	client  *maps.Client
	breaker *circuit.Breaker
}

func New(apiKey string, log *logging.Logger) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errs.NewUpstream("geocode.New", "googlemaps", "client init failed", err)
	}
	return &Geocoder{
		client: client,
		breaker: circuit.New(circuit.Config{
			Name:              "googlemaps_geocode",
			OperationTimeout:  10 * time.Second,
			OpenFor:           30 * time.Second,
			MaxConsecFailures: 5,
			WindowSize:        20,
			FailureRate:       0.5,
		}, log),
	}, nil
}

// Result is a resolved address.
type Result struct {
	Point            models.GeoPoint
	FormattedAddress string
}

// Geocode resolves an address to coordinates. Returns a not-found error when
// the address does not resolve to any location.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, errs.NewValidation("geocode.Geocode", "address is empty", nil)
	}

	var results []maps.GeocodingResult
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		return err
	}, nil)
	if err != nil {
		return nil, errs.NewUpstream("geocode.Geocode", "googlemaps", "geocoding call failed", err)
	}
	if len(results) == 0 {
		return nil, errs.NewNotFound("geocode.Geocode", fmt.Sprintf("no location for address %q", address), nil)
	}

	loc := results[0].Geometry.Location
	return &Result{
		Point:            *models.NewGeoPoint(loc.Lng, loc.Lat),
		FormattedAddress: results[0].FormattedAddress,
	}, nil
}

// Verification reports how well a claimed address matches its claimed
// coordinates.
type Verification struct {
	Result
	AddressSimilarity float64
	DistanceKm        float64
}

// Verify geocodes the claimed address and measures agreement with the
// claimed point. Callers decide what thresholds to enforce.
func (g *Geocoder) Verify(ctx context.Context, address string, claimed models.GeoPoint) (*Verification, error) {
	res, err := g.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Result:            *res,
		AddressSimilarity: utils.CompareAddresses(address, res.FormattedAddress),
		DistanceKm: geography.HaversineKm(
			geography.Point{Lng: claimed.Lng(), Lat: claimed.Lat()},
			geography.Point{Lng: res.Point.Lng(), Lat: res.Point.Lat()},
		),
	}, nil
}
