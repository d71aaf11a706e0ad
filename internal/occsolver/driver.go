// Public domain.

package occsolver

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/metrics"
	"github.com/viscoinv/occam/internal/occerr"
)

// Regularization configures the Tikhonov operator of a run.  Zero
// lengths take the defaults of TikhonovFor.
type Regularization struct {
	RowNormLength float64
	ColNormLength float64
	NonLinDamping float64
}

// Config is everything a run shares across trials.
type Config struct {
	Observation    *green.Model
	SD             *green.Model // optional standard deviations
	Floors         Floors
	Epochs         epochal.List
	Fault          *fault.Model
	Alphas         []float64
	Regularization Regularization
	Mode           Mode
	Linearization  map[string]float64 // linearization point by parameter label
	Selection      Selection
	Workers        int
	Rcond          float64
}

// Perturbation is a Green's function table computed with one non-linear
// parameter changed.
type Perturbation struct {
	Model *green.Model
	Label string
}

// Trial is one candidate set of non-linear parameter values.
type Trial struct {
	Name      string
	Reference *green.Model
	Perturbed []Perturbation
	Slip0     SlipSource // required when Perturbed is not empty
}

// TrialReport is the L-curve of a trial.  Points follow the configured
// alpha order.  Err is set when the trial could not be assembled, in
// which case every point is a gap carrying the same error.
type TrialReport struct {
	Name   string
	Layout Layout
	NonLin []NonLinParam
	Points []Point
	Corner int // index into Points, -1 if none
	Err    error
}

// Report is the outcome of a run.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Finished time.Time
	Trials   []TrialReport
	Best     *Result // nil when nothing was selected
}

// Driver runs trials over an alpha sweep.
type Driver struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// NewDriver validates cfg.
func NewDriver(cfg Config, opts ...Option) (*Driver, error) {
	const op = "occsolver.NewDriver"
	switch {
	case cfg.Observation == nil:
		return nil, occerr.Configuration(op, "no observation")
	case cfg.Fault == nil:
		return nil, occerr.Configuration(op, "no fault model")
	case cfg.Epochs.Len() == 0:
		return nil, occerr.Configuration(op, "no epochs")
	case len(cfg.Alphas) == 0:
		return nil, occerr.Configuration(op, "no alphas")
	}
	if err := cfg.Fault.Validate(); err != nil {
		return nil, err
	}
	for _, a := range cfg.Alphas {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, occerr.Configuration(op, "alpha %g", a)
		}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Rcond == 0 {
		cfg.Rcond = DefaultRcond
	}
	d := &Driver{cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Run assembles and sweeps every trial.  Trials run concurrently, up to
// the configured number of workers, each on its own matrices.  Trial and
// solve failures are recorded in the report; Run itself fails only when
// ctx is done, returning what was completed.
func (d *Driver) Run(ctx context.Context, trials []Trial) (*Report, error) {
	rep := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		Trials:  make([]TrialReport, len(trials)),
	}
	log := d.log.With(zap.String("run", rep.RunID.String()))
	log.Info("run started", zap.Int("trials", len(trials)),
		zap.Float64s("alphas", d.cfg.Alphas), zap.Int("workers", d.cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, tr := range trials {
		g.Go(func() error {
			rep.Trials[i] = d.runTrial(gctx, log, tr)
			return nil
		})
	}
	g.Wait()
	rep.Finished = time.Now()

	if d.cfg.Selection == SelectCorner {
		rep.Best = d.selectBest(rep.Trials)
	}
	if rep.Best != nil {
		log.Info("selected", zap.String("trial", rep.Best.Trial()),
			zap.Float64("alpha", rep.Best.Alpha()), zap.Float64("misfit", rep.Best.Misfit()),
			zap.Float64("roughness", rep.Best.Roughness()))
	}
	return rep, ctx.Err()
}

func (d *Driver) runTrial(ctx context.Context, log *zap.Logger, tr Trial) TrialReport {
	log = log.With(zap.String("trial", tr.Name))
	rep := TrialReport{Name: tr.Name, Corner: -1}
	start := time.Now()
	solver, err := d.assemble(tr, &rep)
	d.metrics.ObserveAssemble(start, err)
	if err != nil {
		log.Warn("trial failed", zap.Error(err))
		rep.Err = err
		for _, a := range d.cfg.Alphas {
			rep.Points = append(rep.Points, Point{Alpha: a, Err: err})
		}
		return rep
	}
	log.Debug("assembled", zap.Duration("elapsed", time.Since(start)),
		zap.Int("rows", rep.Layout.Rows()), zap.Int("cols", rep.Layout.Cols()))

	for _, a := range d.cfg.Alphas {
		if err := ctx.Err(); err != nil {
			rep.Points = append(rep.Points, Point{Alpha: a, Err: err})
			continue
		}
		start := time.Now()
		sol, err := solver.Solve(a)
		d.metrics.ObserveSolve(start, err)
		if err != nil {
			log.Info("gap", zap.Float64("alpha", a), zap.Error(err))
			rep.Points = append(rep.Points, Point{Alpha: a, Err: err})
			continue
		}
		log.Debug("solved", zap.Float64("alpha", a), zap.Float64("misfit", sol.Misfit),
			zap.Float64("roughness", sol.Roughness), zap.Float64("cond", sol.Cond))
		rep.Points = append(rep.Points, Point{Alpha: a, Solution: sol})
	}
	rep.Corner = Corner(rep.Points)
	return rep
}

// assemble builds the solver of a trial, filling in the layout and
// non-linear parameters of rep.
func (d *Driver) assemble(tr Trial, rep *TrialReport) (*Solver, error) {
	const op = "occsolver.Driver"
	if tr.Reference == nil {
		return nil, occerr.Configuration(op, "trial %s: no reference table", tr.Name)
	}
	if len(tr.Perturbed) > 0 && tr.Slip0 == nil {
		return nil, occerr.Configuration(op, "trial %s: non-linear parameters without initial slip", tr.Name)
	}
	var sens []Sensitivity
	for _, p := range tr.Perturbed {
		if p.Model == nil {
			return nil, occerr.Configuration(op, "trial %s: %s: no table", tr.Name, p.Label)
		}
		diff, err := tr.Reference.Difference(p.Model, p.Label)
		if err != nil {
			return nil, err
		}
		sens = append(sens, Sensitivity{diff, tr.Slip0})
		ref, ok := tr.Reference.Param(p.Label)
		step, sok := diff.Step()
		rep.NonLin = append(rep.NonLin, NonLinParam{
			Label:         p.Label,
			Reference:     paramOrNaN(ref, ok),
			Step:          paramOrNaN(step, sok),
			Linearization: d.cfg.Linearization[p.Label],
		})
	}

	jac, layout, err := AssembleJacobian(tr.Reference, sens, d.cfg.Epochs)
	if err != nil {
		return nil, err
	}
	rep.Layout = layout
	if layout.Patches != d.cfg.Fault.NumPatches() {
		return nil, occerr.Consistency(op, "trial %s: %d patches in tables, fault grid has %d",
			tr.Name, layout.Patches, d.cfg.Fault.NumPatches())
	}
	obs, err := AssembleObservation(d.cfg.Observation, layout, d.cfg.Mode)
	if err != nil {
		return nil, err
	}
	x0 := make([]float64, len(rep.NonLin))
	for j, p := range rep.NonLin {
		x0[j] = p.Linearization
	}
	if obs, err = Linearize(obs, jac, layout, x0); err != nil {
		return nil, err
	}
	if d.cfg.SD != nil || d.cfg.Floors.Default > 0 || len(d.cfg.Floors.Sites) > 0 {
		sigma, err := Weights(d.cfg.SD, layout, d.cfg.Floors)
		if err != nil {
			return nil, err
		}
		if err = ApplyWeights(jac, obs, sigma); err != nil {
			return nil, err
		}
	}
	reg := d.cfg.Regularization
	t := TikhonovFor(d.cfg.Fault, layout.Epochs.Len(), len(layout.NonLin))
	if reg.RowNormLength != 0 {
		t.RowNormLength = reg.RowNormLength
	}
	if reg.ColNormLength != 0 {
		t.ColNormLength = reg.ColNormLength
	}
	t.NonLinDamping = reg.NonLinDamping
	r, err := t.Matrix()
	if err != nil {
		return nil, err
	}
	return NewSolver(System{G: jac, D: obs, R: r}, WithRcond(d.cfg.Rcond))
}

// selectBest takes the corner of each trial and returns the one with the
// lowest misfit.
func (d *Driver) selectBest(trials []TrialReport) *Result {
	bi := -1
	for i, tr := range trials {
		if tr.Corner < 0 {
			continue
		}
		if bi < 0 || tr.Points[tr.Corner].Solution.Misfit <
			trials[bi].Points[trials[bi].Corner].Solution.Misfit {
			bi = i
		}
	}
	if bi < 0 {
		return nil
	}
	tr := trials[bi]
	return newResult(tr.Name, tr.Layout, tr.NonLin, tr.Points[tr.Corner].Solution)
}

// Result builds the result for point i of a trial report.
func (tr *TrialReport) Result(i int) (*Result, error) {
	if i < 0 || i >= len(tr.Points) {
		return nil, occerr.Configuration("occsolver.TrialReport.Result", "point %d of %d", i, len(tr.Points))
	}
	p := tr.Points[i]
	if p.Gap() {
		return nil, p.Err
	}
	return newResult(tr.Name, tr.Layout, tr.NonLin, p.Solution), nil
}
