package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Peak locates the highest rate cell of the latest slice.
type Peak struct {
	Rate float64 `json:"rate"`
	Y    int     `json:"y"`
	X    int     `json:"x"`
	Geo  Geo     `json:"geo"`

	// Geocoding enrichment fields.
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // GeoSourceReverse, GeoSourceFailed or GeoSourceNone
}

// Summary describes one derived rain rate product.
type Summary struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source,omitempty"`
	Units         string    `json:"units"`
	Steps         int       `json:"steps"`
	Ny            int       `json:"ny"`
	Nx            int       `json:"nx"`
	FirstTime     time.Time `json:"first_time"`
	ValidTime     time.Time `json:"valid_time"`
	MeanRate      float64   `json:"mean_rate"`
	WetCells      int       `json:"wet_cells"`
	NonFinite     int       `json:"non_finite_cells"`
	Peak          Peak      `json:"peak"`
	ImagePath     string    `json:"image_path,omitempty"`
	DataPath      string    `json:"data_path,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
	IntervalHours []float64 `json:"interval_hours"`
}

// Summarize computes statistics over the finite cells of the latest slice.
// Cells that are NaN or infinite are counted but excluded from every statistic.
func Summarize(sel Selection) Summary {
	s := Summary{
		RunID:         uuid.NewString(),
		Units:         sel.Full.Units,
		Steps:         sel.Full.Steps(),
		ValidTime:     sel.Latest.ValidTime,
		IntervalHours: sel.Full.IntervalHours,
	}
	if len(sel.Full.Times) > 0 && len(sel.Full.IntervalHours) > 0 {
		s.FirstTime = sel.Full.Times[0].Add(-hoursToDuration(sel.Full.IntervalHours[0]))
	}

	data := sel.Latest.Data
	if data == nil {
		return s
	}
	s.Ny, s.Nx = data.Shape[0], data.Shape[1]

	finite := make([]float64, 0, len(data.Elements))
	index := make([]int, 0, len(data.Elements))
	for i, v := range data.Elements {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NonFinite++
			continue
		}
		if v > 0 {
			s.WetCells++
		}
		finite = append(finite, v)
		index = append(index, i)
	}
	if len(finite) == 0 {
		return s
	}

	s.MeanRate = floats.Sum(finite) / float64(len(finite))

	peak := index[floats.MaxIdx(finite)]
	y, x := peak/s.Nx, peak%s.Nx
	s.Peak = Peak{Rate: data.Elements[peak], Y: y, X: x}
	if sel.Grid.Lat != nil && sel.Grid.Lon != nil {
		s.Peak.Geo = Geo{Lat: sel.Grid.Lat.Get(y, x), Lon: sel.Grid.Lon.Get(y, x)}
	}
	return s
}

// StampSummary sets the processing time from the package clock.
func StampSummary(s Summary) Summary {
	s.ProcessedAt = Now()
	return s
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}
