package domain

import (
	"context"
	"log/slog"
)

// Peak.GeoSource values.
const (
	// GeoSourceReverse marks a peak named by reverse geocoding.
	GeoSourceReverse = "reverse"
	// GeoSourceFailed marks a lookup that returned an error.
	GeoSourceFailed = "failed"
	// GeoSourceNone marks a peak left unnamed: no lookup for a dry slice, or an empty result.
	GeoSourceNone = "none"
)

// EnrichWithGeocoding names the place nearest to the summary's peak cell.
// If geocoder is nil or the lookup fails, the summary is returned with
// Peak.GeoSource set accordingly (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, s Summary, geocoder Geocoder, logger *slog.Logger) Summary {
	if geocoder == nil {
		return s
	}

	// A dry or all-NaN slice has no meaningful peak.
	if s.Peak.Rate <= 0 {
		s.Peak.GeoSource = GeoSourceNone
		return s
	}

	result, err := geocoder.ReverseGeocode(ctx, s.Peak.Geo.Lat, s.Peak.Geo.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"run_id", s.RunID,
			"lat", s.Peak.Geo.Lat,
			"lon", s.Peak.Geo.Lon,
			"error", err,
		)
		s.Peak.GeoSource = GeoSourceFailed
		return s
	}
	if result.FormattedAddress == "" {
		s.Peak.GeoSource = GeoSourceNone
		return s
	}

	s.Peak.FormattedAddress = result.FormattedAddress
	s.Peak.PlaceName = result.PlaceName
	s.Peak.GeoConfidence = result.Confidence
	s.Peak.GeoSource = GeoSourceReverse
	return s
}
