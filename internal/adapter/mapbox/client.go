package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
)

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// forwardCandidates is how many features a site lookup asks for. Volcano
// names often collide with towns and provinces, so one is rarely enough.
const forwardCandidates = 5

// ForwardGeocode resolves a site name to coordinates. Volcanoes are indexed
// as points of interest, so those are searched alongside places and a
// volcano feature wins over a better-ranked town of the same name.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(forwardCandidates)},
		"types":        {"poi,place,locality,region"},
		"language":     {"en"},
	}

	return c.doRequest(ctx, u+"?"+params.Encode(), "forward", pickSite)
}

// ReverseGeocode labels a site's coordinates with the settlement, region and
// country around it. Mapbox returns one feature per requested type, most
// specific first, so the first one carries the fullest place name.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"place,region,country"},
		"language":     {"en"},
	}

	return c.doRequest(ctx, u+"?"+params.Encode(), "reverse", firstFeature)
}

// pickSite returns the first volcano feature, falling back to the
// best-ranked feature when none is tagged as one.
func pickSite(features []feature) feature {
	for _, f := range features {
		if f.isVolcano() {
			return f
		}
	}
	return features[0]
}

func firstFeature(features []feature) feature {
	return features[0]
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string, pick func([]feature) feature) (domain.GeocodingResult, error) {
	result, err := c.request(ctx, fullURL, method, pick)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	return result, err
}

func (c *Client) request(ctx context.Context, fullURL, method string, pick func([]feature) feature) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		c.logger.Debug("geocoding returned no features", "method", method)
		return domain.GeocodingResult{}, nil
	}

	f := pick(mapboxResp.Features)
	result := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Lon = f.Center[0]
		result.Lat = f.Center[1]
	}
	return result, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center     []float64  `json:"center"` // [lon, lat]
	PlaceName  string     `json:"place_name"`
	Text       string     `json:"text"`
	Relevance  float64    `json:"relevance"`
	Properties properties `json:"properties"`
}

type properties struct {
	Category string `json:"category"` // comma-separated, e.g. "volcano, mountain"
}

func (f feature) isVolcano() bool {
	return strings.Contains(strings.ToLower(f.Properties.Category), "volcano")
}
