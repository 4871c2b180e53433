package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wetSummary() Summary {
	return Summary{
		RunID: "run-1",
		Peak:  Peak{Rate: 12.5, Y: 3, X: 4, Geo: Geo{Lat: -7.25, Lon: 112.75}},
	}
}

// --- tests ---

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	result := EnrichWithGeocoding(context.Background(), wetSummary(), nil, discardLogger())

	assert.Empty(t, result.Peak.GeoSource)
	assert.Empty(t, result.Peak.FormattedAddress)
}

func TestEnrichWithGeocoding_ReverseGeocode(t *testing.T) {
	geo := &mockGeocoder{
		result: GeocodingResult{
			FormattedAddress: "Surabaya, East Java, Indonesia",
			PlaceName:        "Surabaya",
			Confidence:       0.9,
		},
	}

	result := EnrichWithGeocoding(context.Background(), wetSummary(), geo, discardLogger())

	assert.Equal(t, "Surabaya, East Java, Indonesia", result.Peak.FormattedAddress)
	assert.Equal(t, "Surabaya", result.Peak.PlaceName)
	assert.Equal(t, 0.9, result.Peak.GeoConfidence)
	assert.Equal(t, GeoSourceReverse, result.Peak.GeoSource)
	assert.Equal(t, -7.25, result.Peak.Geo.Lat, "coordinates come from the grid, not the geocoder")
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichWithGeocoding_Failure(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("timeout")}

	result := EnrichWithGeocoding(context.Background(), wetSummary(), geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, result.Peak.GeoSource)
	assert.Empty(t, result.Peak.FormattedAddress)
}

func TestEnrichWithGeocoding_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}

	result := EnrichWithGeocoding(context.Background(), wetSummary(), geo, discardLogger())

	assert.Equal(t, GeoSourceNone, result.Peak.GeoSource)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichWithGeocoding_DrySliceSkipsLookup(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "somewhere"}}

	s := wetSummary()
	s.Peak.Rate = 0
	result := EnrichWithGeocoding(context.Background(), s, geo, discardLogger())

	assert.Equal(t, GeoSourceNone, result.Peak.GeoSource)
	assert.Equal(t, 0, geo.calls)
}
