package netcdf

import "github.com/couchcryptid/storm-data-rainrate/internal/domain"

// Persister writes rain rate products, taking provenance from the run summary.
// It implements pipeline.Persister.
type Persister struct {
	Title string
}

// Persist writes sel to path with the summary's source, run id and processing time.
func (p Persister) Persist(path string, sel domain.Selection, s domain.Summary) error {
	return WriteRainRate(path, sel, OutputMeta{
		Title:   p.Title,
		Source:  s.Source,
		RunID:   s.RunID,
		Created: s.ProcessedAt,
	})
}
