package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// DefaultMapboxURL is the public Mapbox API.
const DefaultMapboxURL = "https://api.mapbox.com"

// Mapbox reverse geocodes with the Mapbox places endpoint.
type Mapbox struct {
	baseURL    string
	token      string
	language   string
	httpClient *http.Client
}

// NewMapbox returns a geocoder. An empty baseURL uses DefaultMapboxURL.
func NewMapbox(baseURL, token, language string, timeout time.Duration) *Mapbox {
	if baseURL == "" {
		baseURL = DefaultMapboxURL
	}
	return &Mapbox{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type mapboxResponse struct {
	Features []struct {
		PlaceName string   `json:"place_name"`
		Text      string   `json:"text"`
		PlaceType []string `json:"place_type"`
	} `json:"features"`
}

// ReverseGeocode returns the best address for (lat, lon). It wraps model.ErrNotFound
// when Mapbox has no feature there.
func (m *Mapbox) ReverseGeocode(ctx context.Context, lat, lon float64) (*model.GeocodeResult, error) {
	q := url.Values{
		"access_token": {m.token},
		"limit":        {"1"},
		"types":        {"address,poi,neighborhood,place"},
	}
	if m.language != "" {
		q.Set("language", m.language)
	}
	coords := strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.baseURL, coords, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode: HTTP %d", resp.StatusCode)
	}

	var body mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reverse geocode: decode: %w", err)
	}
	if len(body.Features) == 0 || body.Features[0].PlaceName == "" {
		return nil, fmt.Errorf("reverse geocode %.5f,%.5f: %w", lat, lon, model.ErrNotFound)
	}
	f := body.Features[0]
	return &model.GeocodeResult{DisplayName: f.PlaceName, Name: f.Text}, nil
}
