package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

var wanted = map[string]bool{
	"agency.txt":     true,
	"routes.txt":     true,
	"trips.txt":      true,
	"stops.txt":      true,
	"stop_times.txt": true,
	"shapes.txt":     true,
}

// Load builds an index from a GTFS zip.
func Load(r io.ReaderAt, size int64) (*Index, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open gtfs zip: %w", err)
	}
	g := newIndex()
	for _, f := range zr.File {
		if !wanted[strings.ToLower(path.Base(f.Name))] {
			continue
		}
		if err := g.consumeCSV(f); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if len(g.routes) == 0 {
		return nil, errors.New("gtfs feed has no routes")
	}
	g.finalize()
	return g, nil
}

// LoadBytes builds an index from zip bytes.
func LoadBytes(data []byte) (*Index, error) {
	return Load(bytes.NewReader(data), int64(len(data)))
}

// LoadFile builds an index from a zip on disk.
func LoadFile(name string) (*Index, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open gtfs zip %s: %w", name, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Load(f, st.Size())
}

// Fetch downloads a GTFS zip and builds an index from it.
func Fetch(ctx context.Context, client *http.Client, url string) (*Index, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return LoadBytes(data)
}

func (g *Index) consumeCSV(f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	switch strings.ToLower(path.Base(f.Name)) {
	case "agency.txt":
		agID, agName, agURL, agTZ := idx("agency_id"), idx("agency_name"), idx("agency_url"), idx("agency_timezone")
		for _, row := range rec[1:] {
			g.agencies = append(g.agencies, model.Agency{
				ID:   field(row, agID),
				Name: field(row, agName),
				URL:  field(row, agURL),
			})
			if tz := field(row, agTZ); tz != "" && g.location == time.UTC {
				if loc, err := time.LoadLocation(tz); err == nil {
					g.location = loc
				}
			}
		}
	case "routes.txt":
		rID, rSN, rLN, rAg := idx("route_id"), idx("route_short_name"), idx("route_long_name"), idx("agency_id")
		if rID < 0 {
			return errors.New("missing route_id column")
		}
		for _, row := range rec[1:] {
			g.routes[field(row, rID)] = routeRecord{
				ShortName: field(row, rSN),
				LongName:  field(row, rLN),
				AgencyID:  field(row, rAg),
			}
		}
	case "trips.txt":
		rID, tID, svc := idx("route_id"), idx("trip_id"), idx("service_id")
		hs, dir, sh := idx("trip_headsign"), idx("direction_id"), idx("shape_id")
		if rID < 0 || tID < 0 {
			return errors.New("missing route_id or trip_id column")
		}
		for _, row := range rec[1:] {
			g.trips[field(row, tID)] = tripRecord{
				RouteID:     field(row, rID),
				ServiceID:   field(row, svc),
				Headsign:    field(row, hs),
				DirectionID: field(row, dir),
				ShapeID:     field(row, sh),
			}
		}
	case "stops.txt":
		sID, sCode, sN, sLat, sLon, sDesc := idx("stop_id"), idx("stop_code"), idx("stop_name"), idx("stop_lat"), idx("stop_lon"), idx("stop_desc")
		if sID < 0 {
			return errors.New("missing stop_id column")
		}
		for _, row := range rec[1:] {
			lat, _ := strconv.ParseFloat(field(row, sLat), 64)
			lon, _ := strconv.ParseFloat(field(row, sLon), 64)
			id := field(row, sID)
			g.stops[id] = model.Stop{
				ID:        id,
				Code:      field(row, sCode),
				Name:      field(row, sN),
				Latitude:  lat,
				Longitude: lon,
				Direction: field(row, sDesc),
			}
		}
	case "stop_times.txt":
		tID, sID, sq := idx("trip_id"), idx("stop_id"), idx("stop_sequence")
		arr, dep := idx("arrival_time"), idx("departure_time")
		if tID < 0 || sID < 0 || sq < 0 {
			return nil
		}
		for _, row := range rec[1:] {
			seq, _ := strconv.Atoi(field(row, sq))
			trip := field(row, tID)
			g.stopTimes[trip] = append(g.stopTimes[trip], stopTime{
				StopID:    field(row, sID),
				Sequence:  seq,
				Arrival:   field(row, arr),
				Departure: field(row, dep),
			})
		}
	case "shapes.txt":
		sh, latIdx, lonIdx, seqIdx := idx("shape_id"), idx("shape_pt_lat"), idx("shape_pt_lon"), idx("shape_pt_sequence")
		if sh < 0 || latIdx < 0 || lonIdx < 0 || seqIdx < 0 {
			return nil
		}
		type point struct {
			c   model.Coordinate
			seq int
		}
		tmp := map[string][]point{}
		for _, row := range rec[1:] {
			lat, _ := strconv.ParseFloat(field(row, latIdx), 64)
			lon, _ := strconv.ParseFloat(field(row, lonIdx), 64)
			seq, _ := strconv.Atoi(field(row, seqIdx))
			id := field(row, sh)
			tmp[id] = append(tmp[id], point{model.Coordinate{Latitude: lat, Longitude: lon}, seq})
		}
		for id, pts := range tmp {
			sortPoints(pts, func(p point) int { return p.seq })
			line := make(model.LineString, len(pts))
			for i, p := range pts {
				line[i] = p.c
			}
			g.shapes[id] = line
		}
	}
	return nil
}

func sortPoints[T any](s []T, key func(T) int) {
	// insertion sort; shape files are nearly always already ordered
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && key(s[j]) < key(s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
