package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flipapp/leaderboard/internal/model"
)

// PlaceholderArea is the generic name callers fall back to when
// reverse-geocoding fails.
const PlaceholderArea = "Your Area"

type Placemark struct {
	Name               string
	Locality           string
	AdministrativeArea string
	Thoroughfare       string
	Coordinate         model.Coordinate
}

type Place struct {
	Name       string
	Coordinate model.Coordinate
}

type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoxAround returns a bounding box spanning spanDeg degrees centered on c.
func BoxAround(c model.Coordinate, spanDeg float64) BoundingBox {
	half := spanDeg / 2
	return BoundingBox{
		MinLat: c.Latitude - half,
		MinLon: c.Longitude - half,
		MaxLat: c.Latitude + half,
		MaxLon: c.Longitude + half,
	}
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, c model.Coordinate) (Placemark, error)
	SearchNearby(ctx context.Context, query string, box BoundingBox) ([]Place, error)
}

// Client talks to a Nominatim-compatible geocoding API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		Road    string `json:"road"`
		Suburb  string `json:"suburb"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
	} `json:"address"`
}

func (c *Client) ReverseGeocode(ctx context.Context, coord model.Coordinate) (Placemark, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))

	var result nominatimResult
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return Placemark{}, err
	}

	locality := result.Address.City
	if locality == "" {
		locality = result.Address.Town
	}
	if locality == "" {
		locality = result.Address.Village
	}
	name := result.Name
	if name == "" {
		name = result.DisplayName
	}
	return Placemark{
		Name:               name,
		Locality:           locality,
		AdministrativeArea: result.Address.State,
		Thoroughfare:       result.Address.Road,
		Coordinate:         parseCoordinate(result, coord),
	}, nil
}

func (c *Client) SearchNearby(ctx context.Context, query string, box BoundingBox) ([]Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("q", query)
	params.Set("bounded", "1")
	params.Set("limit", "10")
	params.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f", box.MinLon, box.MaxLat, box.MaxLon, box.MinLat))

	var results []nominatimResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(results))
	for _, result := range results {
		name := result.Name
		if name == "" {
			name = result.DisplayName
		}
		if name == "" {
			continue
		}
		places = append(places, Place{
			Name:       name,
			Coordinate: parseCoordinate(result, model.Coordinate{}),
		})
	}
	return places, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocode call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geocode decode: %w", err)
	}
	return nil
}

func parseCoordinate(result nominatimResult, fallback model.Coordinate) model.Coordinate {
	lat, errLat := strconv.ParseFloat(result.Lat, 64)
	lon, errLon := strconv.ParseFloat(result.Lon, 64)
	if errLat != nil || errLon != nil {
		return fallback
	}
	return model.Coordinate{Latitude: lat, Longitude: lon}
}
