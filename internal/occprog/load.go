// Public domain.

package occprog

import (
	"errors"
	"io"

	"github.com/soniakeys/unit"
	"go.uber.org/zap"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occsolver"
	"github.com/viscoinv/occam/internal/sites"
	"github.com/viscoinv/occam/internal/synth"
)

// inputs holds everything opened for a run.
type inputs struct {
	filter *sites.List
	epochs epochal.List
	fault  *fault.Model
	obs    *green.Model
	sd     *green.Model
	trials []occsolver.Trial
	files  []io.Closer
}

func (in *inputs) Close() error {
	var errs []error
	for _, f := range in.files {
		errs = append(errs, f.Close())
	}
	in.files = nil
	return errors.Join(errs...)
}

// table opens an epochal file as a site filtered model.
func (in *inputs) table(path string) (*green.Model, error) {
	f, err := epochal.Open(path)
	if err != nil {
		return nil, err
	}
	in.files = append(in.files, f)
	return green.New(f, in.filter)
}

func (c *Config) faultModel() (*fault.Model, error) {
	if c.Fault.File != "" {
		return fault.ReadFile(c.Fault.File)
	}
	m := &fault.Model{
		Rows:        c.Fault.Rows,
		Cols:        c.Fault.Cols,
		PatchStrike: c.Fault.PatchStrike,
		PatchDip:    c.Fault.PatchDip,
		TopDepth:    c.Fault.TopDepth,
		Dip:         unit.AngleFromDeg(c.Fault.Dip),
	}
	return m, m.Validate()
}

func (c *Config) floors() occsolver.Floors {
	f := occsolver.Floors{Default: c.Observation.SDDefault}
	if len(c.Observation.SDSites) > 0 {
		f.Sites = map[sites.ID]float64{}
		for _, s := range c.Observation.SDSites {
			f.Sites[sites.ID(s.Site)] = s.Floor
		}
	}
	return f
}

// open reads or opens every input of c.  On error, anything opened is
// closed.
func open(c *Config, log *zap.Logger) (in *inputs, err error) {
	in = &inputs{}
	defer func() {
		if err != nil {
			in.Close()
			in = nil
		}
	}()
	if in.filter, err = sites.ReadFile(c.Sites); err != nil {
		return
	}
	ep := make([]epochal.Epoch, len(c.Epochs))
	for i, e := range c.Epochs {
		ep[i] = epochal.Epoch(e)
	}
	if in.epochs, err = epochal.NewList(ep...); err != nil {
		return
	}
	if in.fault, err = c.faultModel(); err != nil {
		return
	}
	log.Info("inputs", zap.Int("sites", in.filter.Len()), zap.Stringer("epochs", in.epochs),
		zap.Int("patches", in.fault.NumPatches()))

	var slip0 occsolver.SlipSource
	if c.Slip0 != "" {
		f, err := epochal.Open(c.Slip0)
		if err != nil {
			return nil, err
		}
		in.files = append(in.files, f)
		slip0 = occsolver.EpochalSlip{Store: f}
	}

	for _, tc := range c.Trials {
		tr := occsolver.Trial{Name: tc.Name, Slip0: slip0}
		if tr.Reference, err = in.table(tc.Reference); err != nil {
			return
		}
		for _, pc := range tc.Perturbed {
			g, err := in.table(pc.File)
			if err != nil {
				return nil, err
			}
			tr.Perturbed = append(tr.Perturbed, occsolver.Perturbation{Model: g, Label: pc.Label})
		}
		in.trials = append(in.trials, tr)
	}

	if c.Synthetic.Enabled {
		err = in.synthetic(c, log)
		return
	}
	if in.obs, err = in.table(c.Observation.File); err != nil {
		return
	}
	if c.Observation.SDFile != "" {
		in.sd, err = in.table(c.Observation.SDFile)
	}
	return
}

// synthetic replaces the observation by the displacement of a growing
// checkerboard through the first trial's reference table.  Trials without
// an initial slip get the checkerboard.
func (in *inputs) synthetic(c *Config, log *zap.Logger) error {
	s := c.Synthetic
	final := synth.Checkerboard(in.fault, s.Block, s.Amplitude)
	a, err := synth.Observations(in.trials[0].Reference, in.epochs,
		synth.Growing(final, in.epochs.Len()), s.Noise, s.Seed)
	if err != nil {
		return err
	}
	if in.obs, err = green.New(a, in.filter); err != nil {
		return err
	}
	if s.Save != "" {
		if err = save(s.Save, a); err != nil {
			return err
		}
		log.Info("saved synthetic observation", zap.String("file", s.Save))
	}
	for i := range in.trials {
		if in.trials[i].Slip0 == nil {
			in.trials[i].Slip0 = occsolver.NewConstSlip(final)
		}
	}
	log.Info("synthetic observation", zap.Int("block", s.Block),
		zap.Float64("amplitude", s.Amplitude), zap.Float64("noise", s.Noise))
	return nil
}

// save writes a with all its info to a new epochal file.
func save(path string, a *epochal.Array) error {
	f, err := epochal.Create(path)
	if err != nil {
		return err
	}
	if err = epochal.Copy(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// driverConfig assembles the driver configuration from c and in.
func (c *Config) driverConfig(in *inputs) occsolver.Config {
	mode, _ := occsolver.ParseMode(c.Observation.Mode)
	sel, _ := occsolver.ParseSelection(c.Selection)
	var lin map[string]float64
	if len(c.Observation.Linearization) > 0 {
		lin = map[string]float64{}
		for j, x := range c.Observation.Linearization {
			lin[c.Trials[0].Perturbed[j].Label] = x
		}
	}
	return occsolver.Config{
		Observation: in.obs,
		SD:          in.sd,
		Floors:      c.floors(),
		Epochs:      in.epochs,
		Fault:       in.fault,
		Alphas:      c.Alphas,
		Regularization: occsolver.Regularization{
			RowNormLength: c.Regularization.RowNormLength,
			ColNormLength: c.Regularization.ColNormLength,
			NonLinDamping: c.Regularization.NonLinDamping,
		},
		Mode:          mode,
		Linearization: lin,
		Selection:     sel,
		Workers:       c.Workers,
		Rcond:         c.Solver.Rcond,
	}
}
