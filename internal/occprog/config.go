// Public domain.

package occprog

import (
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/occsolver"
)

// Config is the resolved configuration of an occam run.
type Config struct {
	Sites          string               `mapstructure:"sites"`
	Epochs         []int                `mapstructure:"epochs"`
	Fault          FaultConfig          `mapstructure:"fault"`
	Observation    ObservationConfig    `mapstructure:"observation"`
	Slip0          string               `mapstructure:"slip0"`
	Trials         []TrialConfig        `mapstructure:"trials"`
	Regularization RegularizationConfig `mapstructure:"regularization"`
	Alphas         []float64            `mapstructure:"alphas"`
	Solver         SolverConfig         `mapstructure:"solver"`
	Workers        int                  `mapstructure:"workers"`
	Selection      string               `mapstructure:"selection"`
	Output         OutputConfig         `mapstructure:"output"`
	Synthetic      SyntheticConfig      `mapstructure:"synthetic"`
	Log            LogConfig            `mapstructure:"log"`
}

// FaultConfig is either a gob fault file or an inline grid.  Lengths are
// km, dip is degrees.
type FaultConfig struct {
	File        string  `mapstructure:"file"`
	Rows        int     `mapstructure:"rows"`
	Cols        int     `mapstructure:"cols"`
	PatchStrike float64 `mapstructure:"patch_strike"`
	PatchDip    float64 `mapstructure:"patch_dip"`
	TopDepth    float64 `mapstructure:"top_depth"`
	Dip         float64 `mapstructure:"dip"`
}

type ObservationConfig struct {
	File      string      `mapstructure:"file"`
	Mode      string      `mapstructure:"mode"`
	SDFile    string      `mapstructure:"sd_file"`
	SDDefault float64     `mapstructure:"sd_default"`
	SDSites   []SiteFloor `mapstructure:"sd_sites"`
	// Linearization offsets, in the order of each trial's perturbed list.
	Linearization []float64 `mapstructure:"linearization"`
}

// SiteFloor overrides the standard deviation floor of one site.
type SiteFloor struct {
	Site  string  `mapstructure:"site"`
	Floor float64 `mapstructure:"floor"`
}

type TrialConfig struct {
	Name      string               `mapstructure:"name"`
	Reference string               `mapstructure:"reference"`
	Perturbed []PerturbationConfig `mapstructure:"perturbed"`
}

type PerturbationConfig struct {
	File  string `mapstructure:"file"`
	Label string `mapstructure:"label"`
}

type RegularizationConfig struct {
	RowNormLength float64 `mapstructure:"row_norm_length"`
	ColNormLength float64 `mapstructure:"col_norm_length"`
	NonLinDamping float64 `mapstructure:"nonlin_damping"`
}

type SolverConfig struct {
	Rcond float64 `mapstructure:"rcond"`
}

type OutputConfig struct {
	Results string `mapstructure:"results"`
	Report  string `mapstructure:"report"`
	Metrics string `mapstructure:"metrics"`
}

// SyntheticConfig replaces the observation with a checkerboard test
// computed from the first trial's reference table.
type SyntheticConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Block     int     `mapstructure:"block"`
	Amplitude float64 `mapstructure:"amplitude"`
	Noise     float64 `mapstructure:"noise"`
	Seed      uint64  `mapstructure:"seed"`
	Save      string  `mapstructure:"save"` // epochal file for the observation
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// flagBindings maps config keys to flag names.
var flagBindings = map[string]string{
	"alphas":            "alphas",
	"workers":           "workers",
	"selection":         "selection",
	"output.results":    "results",
	"output.report":     "report",
	"output.metrics":    "metrics",
	"synthetic.enabled": "synthetic",
	"log.level":         "log-level",
	"log.development":   "log-development",
}

// Flags returns the command line flags of occam.
func Flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringP("config", "c", "", "YAML configuration file")
	fs.StringSlice("alphas", nil, "regularization strengths")
	fs.Int("workers", 0, "trials run concurrently")
	fs.String("selection", "", "corner or record")
	fs.String("results", "", "results database")
	fs.String("report", "", "L-curve report, YAML")
	fs.String("metrics", "", "metrics textfile")
	fs.Bool("synthetic", false, "run a checkerboard test instead of inverting the observation")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("log-development", false, "console logging")
	fs.BoolP("version", "v", false, "display version and copyright")
	return fs
}

// Load resolves the configuration.
// Precedence: flags > env (OCCAM_ prefix) > config file > defaults.
// fs may be nil.
func Load(fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("observation.mode", occsolver.Cumulative.String())
	v.SetDefault("regularization.row_norm_length", 1.)
	v.SetDefault("regularization.col_norm_length", 0.)
	v.SetDefault("regularization.nonlin_damping", 0.)
	v.SetDefault("solver.rcond", occsolver.DefaultRcond)
	v.SetDefault("workers", 1)
	v.SetDefault("selection", occsolver.SelectCorner.String())
	v.SetDefault("output.results", "results.db")
	v.SetDefault("output.report", "")
	v.SetDefault("output.metrics", "")
	v.SetDefault("synthetic.enabled", false)
	v.SetDefault("synthetic.block", 5)
	v.SetDefault("synthetic.amplitude", 1.)
	v.SetDefault("synthetic.noise", 0.)
	v.SetDefault("synthetic.seed", 3)
	v.SetDefault("synthetic.save", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, occerr.Wrap(occerr.ErrConfiguration, "occprog.Load", err)
			}
		}
	}

	v.SetEnvPrefix("OCCAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var errs []error
		for key, name := range flagBindings {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				errs = append(errs, fmt.Errorf("flag %s: %w", name, err))
			}
		}
		if len(errs) > 0 {
			return nil, occerr.Wrap(occerr.ErrConfiguration, "occprog.Load", errors.Join(errs...))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "occprog.Load", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any file is opened.
func (c *Config) Validate() error {
	const op = "occprog.Validate"
	var errs []error
	bad := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf(format, a...))
	}
	if c.Sites == "" {
		bad("sites: no site file")
	}
	if len(c.Epochs) == 0 {
		bad("epochs: none given")
	}
	for i := 1; i < len(c.Epochs); i++ {
		if c.Epochs[i] <= c.Epochs[i-1] {
			bad("epochs: not strictly ascending at %d", c.Epochs[i])
			break
		}
	}
	if c.Fault.File == "" && (c.Fault.Rows <= 0 || c.Fault.Cols <= 0) {
		bad("fault: give a file or rows and cols")
	}
	if c.Observation.File == "" && !c.Synthetic.Enabled {
		bad("observation: no file")
	}
	if _, err := occsolver.ParseMode(c.Observation.Mode); err != nil {
		bad("observation.mode: %q", c.Observation.Mode)
	}
	if c.Observation.SDDefault < 0 {
		bad("observation.sd_default: negative")
	}
	for _, sf := range c.Observation.SDSites {
		if sf.Site == "" || !(sf.Floor > 0) {
			bad("observation.sd_sites: %q floor %g", sf.Site, sf.Floor)
		}
	}
	if len(c.Trials) == 0 {
		bad("trials: none given")
	}
	names := map[string]bool{}
	for i, t := range c.Trials {
		if t.Name == "" {
			bad("trials[%d]: no name", i)
		} else if names[t.Name] {
			bad("trials[%d]: duplicate name %s", i, t.Name)
		}
		names[t.Name] = true
		if t.Reference == "" {
			bad("trials[%d]: no reference", i)
		}
		if len(c.Observation.Linearization) > len(t.Perturbed) {
			bad("trials[%d]: %d linearization offsets for %d parameters",
				i, len(c.Observation.Linearization), len(t.Perturbed))
		}
		for j, p := range t.Perturbed {
			if p.File == "" || p.Label == "" {
				bad("trials[%d].perturbed[%d]: file and label required", i, j)
			}
			if i > 0 && j < len(c.Trials[0].Perturbed) && p.Label != c.Trials[0].Perturbed[j].Label {
				bad("trials[%d].perturbed[%d]: label %s differs from first trial", i, j, p.Label)
			}
		}
		if len(t.Perturbed) > 0 && c.Slip0 == "" && !c.Synthetic.Enabled {
			bad("trials[%d]: slip0 required for non-linear parameters", i)
		}
	}
	if len(c.Alphas) == 0 {
		bad("alphas: none given")
	}
	for _, a := range c.Alphas {
		if !(a >= 0) {
			bad("alphas: %g", a)
		}
	}
	if !(c.Solver.Rcond > 0 && c.Solver.Rcond < 1) {
		bad("solver.rcond: %g", c.Solver.Rcond)
	}
	if c.Workers < 1 {
		bad("workers: %d", c.Workers)
	}
	if _, err := occsolver.ParseSelection(c.Selection); err != nil {
		bad("selection: %q", c.Selection)
	}
	if c.Synthetic.Enabled && (c.Synthetic.Block < 1 || c.Synthetic.Noise < 0) {
		bad("synthetic: block %d noise %g", c.Synthetic.Block, c.Synthetic.Noise)
	}
	if err := errors.Join(errs...); err != nil {
		return occerr.Wrap(occerr.ErrConfiguration, op, err)
	}
	return nil
}
