package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-data-rainrate/internal/domain"
	"github.com/couchcryptid/storm-data-rainrate/internal/observability"
)

// Dataset is an open input file holding WRF accumulated precipitation.
type Dataset interface {
	Accumulated(name string) (domain.AccumulatedField, error)
	Times() (domain.TimeCoordinate, error)
	Grid() (domain.Grid, error)
	Close() error
}

// Source opens the input dataset at path.
type Source func(path string) (Dataset, error)

// Renderer draws the latest slice as an image at path.
type Renderer interface {
	Render(path string, slice domain.LatestSlice, grid domain.Grid) error
}

// Persister writes the full rate series to path.
type Persister interface {
	Persist(path string, sel domain.Selection, s domain.Summary) error
}

// Notifier announces a finished product.
type Notifier interface {
	Publish(ctx context.Context, s domain.Summary) error
}

// Options locate the input and outputs and tune the optional collaborators.
type Options struct {
	InputPath string
	ImagePath string
	DataPath  string

	// PushgatewayURL enables a metrics push at the end of the run when set.
	PushgatewayURL string
	PublishTimeout time.Duration

	Clock clockwork.Clock
}

// Pipeline runs one rain rate derivation: read, derive, write, announce.
type Pipeline struct {
	source    Source
	renderer  Renderer
	persister Persister
	notifier  Notifier
	geocoder  domain.Geocoder
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	clock     clockwork.Clock
}

// New creates a Pipeline. notifier and geocoder may be nil.
func New(source Source, renderer Renderer, persister Persister, notifier Notifier, geocoder domain.Geocoder,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 10 * time.Second
	}
	return &Pipeline{
		source:    source,
		renderer:  renderer,
		persister: persister,
		notifier:  notifier,
		geocoder:  geocoder,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
		clock:     clock,
	}
}

// Run executes the pipeline once. Both output files appear together or not
// at all. Enrichment, notification and the metrics push are best effort and
// never fail the run.
func (p *Pipeline) Run(ctx context.Context) (domain.Summary, error) {
	start := p.clock.Now()
	p.logger.Info("run started", "input", p.opts.InputPath)

	s, err := p.run(ctx)
	p.metrics.RunDuration.Set(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("failure").Inc()
		p.pushMetrics(ctx, "")
		return domain.Summary{}, err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	p.pushMetrics(ctx, s.RunID)

	p.logger.Info("run complete",
		"run_id", s.RunID,
		"valid_time", s.ValidTime,
		"steps", s.Steps,
		"max_rate", s.Peak.Rate,
		"image", s.ImagePath,
		"data", s.DataPath,
		"duration", p.clock.Since(start),
	)
	return s, nil
}

func (p *Pipeline) run(ctx context.Context) (domain.Summary, error) {
	ds, err := p.source(p.opts.InputPath)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			p.logger.Warn("close input failed", "error", err)
		}
	}()

	var in Inputs
	if err := p.stage("read", func() (err error) {
		in, err = ReadInputs(ds)
		return err
	}); err != nil {
		return domain.Summary{}, err
	}

	var sel domain.Selection
	if err := p.stage("derive", func() (err error) {
		sel, err = Derive(in)
		return err
	}); err != nil {
		return domain.Summary{}, err
	}
	p.logger.Debug("rain rate derived",
		"steps", sel.Full.Steps(),
		"ny", sel.Grid.Ny(),
		"nx", sel.Grid.Nx(),
		"valid_time", sel.Latest.ValidTime,
	)

	s := domain.StampSummary(domain.Summarize(sel))
	s.Source = filepath.Base(p.opts.InputPath)
	s.ImagePath = p.opts.ImagePath
	s.DataPath = p.opts.DataPath
	p.recordSummary(s)

	if err := p.writeOutputs(sel, s); err != nil {
		return domain.Summary{}, err
	}

	s = p.enrich(ctx, s)
	p.notify(ctx, s)
	return s, nil
}

// writeOutputs renders and persists into temporary files beside the targets,
// then renames both into place. A previous data product is kept aside until
// both renames succeed and is put back if either fails.
func (p *Pipeline) writeOutputs(sel domain.Selection, s domain.Summary) error {
	imgTmp, err := tempFile(p.opts.ImagePath)
	if err != nil {
		return fmt.Errorf("prepare image output: %w", err)
	}
	defer removeIfExists(imgTmp)

	dataTmp, err := tempFile(p.opts.DataPath)
	if err != nil {
		return fmt.Errorf("prepare data output: %w", err)
	}
	defer removeIfExists(dataTmp)

	if err := p.stage("render", func() error {
		return p.renderer.Render(imgTmp, sel.Latest, sel.Grid)
	}); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	if err := p.stage("persist", func() error {
		return p.persister.Persist(dataTmp, sel, s)
	}); err != nil {
		return fmt.Errorf("persist rate field: %w", err)
	}

	prev, err := moveAside(p.opts.DataPath)
	if err != nil {
		return fmt.Errorf("back up %s: %w", p.opts.DataPath, err)
	}
	if err := os.Rename(dataTmp, p.opts.DataPath); err != nil {
		prev.restore()
		return fmt.Errorf("install %s: %w", p.opts.DataPath, err)
	}
	if err := os.Rename(imgTmp, p.opts.ImagePath); err != nil {
		prev.restore()
		return fmt.Errorf("install %s: %w", p.opts.ImagePath, err)
	}
	prev.discard()
	p.logger.Info("outputs written", "image", p.opts.ImagePath, "data", p.opts.DataPath)
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, s domain.Summary) domain.Summary {
	if p.geocoder == nil {
		return s
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	return domain.EnrichWithGeocoding(ctx, s, p.geocoder, p.logger)
}

func (p *Pipeline) notify(ctx context.Context, s domain.Summary) {
	if p.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()

	err := p.stage("notify", func() error {
		return p.notifier.Publish(ctx, s)
	})
	if err != nil {
		p.metrics.NotificationErrors.Inc()
		p.logger.Warn("publish summary failed", "run_id", s.RunID, "error", err)
		return
	}
	p.metrics.NotificationsPublished.Inc()
}

func (p *Pipeline) pushMetrics(ctx context.Context, runID string) {
	if p.opts.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()
	if err := p.metrics.Push(ctx, p.opts.PushgatewayURL, runID); err != nil {
		p.logger.Warn("push metrics failed", "url", p.opts.PushgatewayURL, "error", err)
	}
}

func (p *Pipeline) recordSummary(s domain.Summary) {
	p.metrics.TimeSteps.Set(float64(s.Steps))
	p.metrics.GridCells.Set(float64(s.Ny * s.Nx))
	p.metrics.WetCells.Set(float64(s.WetCells))
	p.metrics.NonFiniteCells.Set(float64(s.NonFinite))
	p.metrics.MaxRate.Set(s.Peak.Rate)
	p.metrics.MeanRate.Set(s.MeanRate)
	if s.NonFinite > 0 {
		p.logger.Warn("latest slice has non-finite cells", "run_id", s.RunID, "count", s.NonFinite)
	}
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := p.clock.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())
	return err
}

// tempFile reserves an empty file in the directory of target, creating the
// directory if needed.
func tempFile(target string) (string, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".rainrate-*"+filepath.Ext(target))
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// setAside is a file moved out of the way of a new output.
type setAside struct {
	target string
	saved  string
}

// moveAside renames an existing target to a temporary name in its directory.
// Nothing is moved when target does not exist.
func moveAside(target string) (*setAside, error) {
	a := &setAside{target: target}
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		return a, nil
	} else if err != nil {
		return nil, err
	}
	saved, err := tempFile(target)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(target, saved); err != nil {
		removeIfExists(saved)
		return nil, err
	}
	a.saved = saved
	return a, nil
}

// restore puts the saved file back over target, or removes target when
// nothing was saved.
func (a *setAside) restore() {
	if a.saved == "" {
		removeIfExists(a.target)
		return
	}
	if err := os.Rename(a.saved, a.target); err != nil {
		slog.Warn("restore previous output failed", "path", a.target, "saved", a.saved, "error", err)
	}
}

func (a *setAside) discard() {
	if a.saved != "" {
		removeIfExists(a.saved)
	}
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("remove temporary file failed", "path", path, "error", err)
	}
}
