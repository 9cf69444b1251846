package routes

import (
	"math"

	"github.com/theoremus-urban-solutions/transitmap/model"
	"github.com/theoremus-urban-solutions/transitmap/utils"
)

// Projection locates a position along a branch's stop sequence.
type Projection struct {
	// SegmentIndex is the index of the stop that starts the closest segment.
	SegmentIndex     int        `json:"segmentIndex"`
	NextStop         model.Stop `json:"nextStop"`
	DistanceAlongKM  float64    `json:"distanceAlongKm"`
	DistanceToNextKM float64    `json:"distanceToNextKm"`
	Description      string     `json:"description"`
}

// ProjectOntoBranch projects (lat, lon) onto the segments between consecutive stops of b.
// It needs at least two stops.
func ProjectOntoBranch(b model.Branch, lat, lon float64) (Projection, bool) {
	stops := b.Stops
	if len(stops) < 2 {
		return Projection{}, false
	}

	minDist := math.MaxFloat64
	bestSeg := 0
	bestT := 0.0
	for i := 0; i < len(stops)-1; i++ {
		x1, y1 := stops[i].Longitude, stops[i].Latitude
		x2, y2 := stops[i+1].Longitude, stops[i+1].Latitude
		vx, vy := x2-x1, y2-y1
		wx, wy := lon-x1, lat-y1

		t := 0.0
		if denom := vx*vx + vy*vy; denom > 0 {
			t = math.Max(0, math.Min(1, (wx*vx+wy*vy)/denom))
		}
		dx := lon - (x1 + t*vx)
		dy := lat - (y1 + t*vy)
		if d := dx*dx + dy*dy; d < minDist {
			minDist = d
			bestSeg = i
			bestT = t
		}
	}

	along := 0.0
	for j := 0; j < bestSeg; j++ {
		along += stopDistanceKM(stops[j], stops[j+1])
	}
	segKM := stopDistanceKM(stops[bestSeg], stops[bestSeg+1])
	along += bestT * segKM

	next := stops[bestSeg+1]
	toNext := (1 - bestT) * segKM
	return Projection{
		SegmentIndex:     bestSeg,
		NextStop:         next,
		DistanceAlongKM:  along,
		DistanceToNextKM: toNext,
		Description:      utils.PresentableDistance(0, toNext),
	}, true
}

func stopDistanceKM(a, b model.Stop) float64 {
	return utils.HaversineKM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
