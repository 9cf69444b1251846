package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

// DefaultCommonsURL is the Wikimedia Commons action API.
const DefaultCommonsURL = "https://commons.wikimedia.org/w/api.php"

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Commons searches Wikimedia Commons.
type Commons struct {
	endpoint   string
	httpClient *http.Client
	radius     int
	limit      int
	thumbWidth int
	userAgent  string
}

// NewCommons returns a client searching radius meters around a place for at most
// limit files.
func NewCommons(endpoint string, timeout time.Duration, radius, limit int) *Commons {
	if endpoint == "" {
		endpoint = DefaultCommonsURL
	}
	if radius <= 0 {
		radius = 100
	}
	if limit <= 0 {
		limit = 8
	}
	return &Commons{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		radius:     radius,
		limit:      limit,
		thumbWidth: 320,
		userAgent:  "transitmap/1.0",
	}
}

type metaValue struct {
	Value string `json:"value"`
}

type imageInfo struct {
	URL            string               `json:"url"`
	ThumbURL       string               `json:"thumburl"`
	DescriptionURL string               `json:"descriptionurl"`
	Mime           string               `json:"mime"`
	ExtMetadata    map[string]metaValue `json:"extmetadata"`
}

type page struct {
	PageID    int64       `json:"pageid"`
	Title     string      `json:"title"`
	Index     int         `json:"index"`
	ImageInfo []imageInfo `json:"imageinfo"`
}

type queryResponse struct {
	Query struct {
		Pages map[string]page `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// FindPhotos returns image files near (lat, lon). An area without files yields an empty
// slice, not an error.
func (c *Commons) FindPhotos(ctx context.Context, name string, lat, lon float64) ([]model.Photo, error) {
	q := url.Values{
		"action":       {"query"},
		"format":       {"json"},
		"generator":    {"geosearch"},
		"ggscoord":     {fmt.Sprintf("%.6f|%.6f", lat, lon)},
		"ggsradius":    {strconv.Itoa(c.radius)},
		"ggsnamespace": {"6"},
		"ggslimit":     {strconv.Itoa(c.limit)},
		"prop":         {"imageinfo"},
		"iiprop":       {"url|mime|extmetadata"},
		"iiurlwidth":   {strconv.Itoa(c.thumbWidth)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commons: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("commons: HTTP %d", resp.StatusCode)
	}
	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("commons: decode: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("commons: %s: %s", body.Error.Code, body.Error.Info)
	}

	pages := make([]page, 0, len(body.Query.Pages))
	for _, p := range body.Query.Pages {
		if len(p.ImageInfo) == 0 || !strings.HasPrefix(p.ImageInfo[0].Mime, "image/") {
			continue
		}
		pages = append(pages, p)
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	mentions := func(p page) bool {
		return needle != "" && strings.Contains(strings.ToLower(p.Title), needle)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		mi, mj := mentions(pages[i]), mentions(pages[j])
		if mi != mj {
			return mi
		}
		return pages[i].Index < pages[j].Index
	})

	out := make([]model.Photo, 0, len(pages))
	for _, p := range pages {
		info := p.ImageInfo[0]
		out = append(out, model.Photo{
			URL:          info.URL,
			ThumbnailURL: info.ThumbURL,
			Title:        strings.TrimSuffix(strings.TrimPrefix(p.Title, "File:"), extension(p.Title)),
			Attribution:  plain(info.ExtMetadata["Artist"].Value),
			PageURL:      info.DescriptionURL,
		})
	}
	return out, nil
}

func extension(title string) string {
	if i := strings.LastIndexByte(title, '.'); i > 0 && len(title)-i <= 5 {
		return title[i:]
	}
	return ""
}

// plain strips markup from an extmetadata value.
func plain(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}
