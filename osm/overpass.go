package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// DefaultOverpassURL is the public Overpass interpreter.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// Client queries an Overpass API.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	matchRadius float64
	limit       int
}

// NewClient returns a client. matchRadius bounds FindMatchingPOI in meters (default 75).
func NewClient(endpoint string, timeout time.Duration, matchRadius float64) *Client {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	if matchRadius <= 0 {
		matchRadius = 75
	}
	return &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: timeout},
		matchRadius: matchRadius,
		limit:       50,
	}
}

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *point            `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

func (e element) poi() model.OSMPoi {
	lat, lon := e.Lat, e.Lon
	if e.Center != nil {
		lat, lon = e.Center.Lat, e.Center.Lon
	}
	return model.OSMPoi{
		ID:           e.ID,
		Type:         e.Type,
		Name:         e.Tags["name"],
		Latitude:     lat,
		Longitude:    lon,
		Tags:         e.Tags,
		OpeningHours: e.Tags["opening_hours"],
	}
}

func (c *Client) query(ctx context.Context, ql string) ([]element, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("overpass: HTTP %d", resp.StatusCode)
	}
	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("overpass: decode: %w", err)
	}
	return body.Elements, nil
}

// FindMatchingPOI returns the nearest element named name around (lat, lon), or nil when
// nothing matches.
func (c *Client) FindMatchingPOI(ctx context.Context, name string, lat, lon float64) (*model.OSMPoi, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	ql := fmt.Sprintf(`[out:json][timeout:10];nwr(around:%.0f,%.6f,%.6f)["name"~"^%s$",i];out center tags;`,
		c.matchRadius, lat, lon, escapeQL(regexp.QuoteMeta(name)))
	elems, err := c.query(ctx, ql)
	if err != nil {
		return nil, err
	}
	var best *model.OSMPoi
	bestDist := 0.0
	for _, e := range elems {
		p := e.poi()
		d := utils.HaversineMeters(lat, lon, p.Latitude, p.Longitude)
		if best == nil || d < bestDist {
			best, bestDist = &p, d
		}
	}
	return best, nil
}

// FindNearby returns named amenities, shops and attractions within radius meters,
// nearest first.
func (c *Client) FindNearby(ctx context.Context, lat, lon, radius float64) ([]model.NearbyPlace, error) {
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radius, lat, lon)
	ql := fmt.Sprintf(`[out:json][timeout:10];(nwr%[1]s["name"]["amenity"];nwr%[1]s["name"]["shop"];nwr%[1]s["name"]["tourism"];);out center tags %[2]d;`,
		around, c.limit)
	elems, err := c.query(ctx, ql)
	if err != nil {
		return nil, err
	}
	out := make([]model.NearbyPlace, 0, len(elems))
	for _, e := range elems {
		p := e.poi()
		out = append(out, model.NearbyPlace{POI: p, DistanceMeters: utils.HaversineMeters(lat, lon, p.Latitude, p.Longitude)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out, nil
}

// escapeQL escapes a value for a double-quoted Overpass QL string.
func escapeQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
