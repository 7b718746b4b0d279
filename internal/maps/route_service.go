// README: Driving ETA lookups via the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"

	"saferide/internal/types"
)

// RouteService answers "how many minutes until the driver reaches the
// pickup". Callers fall back to a fixed default when it errors.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// MinutesBetween returns the driving duration from origin to dest, rounded
// up to whole minutes. Driving mode only.
func (s *RouteService) MinutesBetween(ctx context.Context, origin, dest types.Point) (int, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return int(math.Ceil(leg.Duration.Minutes())), nil
}
