// Public domain.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soniakeys/exit"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/metrics"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/pollitz"
	"github.com/viscoinv/occam/internal/simrun"
)

const versionString = "gmk version 0.2 Go source."
const copyrightString = "Public domain."

type config struct {
	Program    string        `mapstructure:"program"`
	Args       []string      `mapstructure:"args"`
	EarthDir   string        `mapstructure:"earth_dir"`
	EarthFiles []string      `mapstructure:"earth_files"`
	Subfaults  string        `mapstructure:"subfaults"` // glob of sub-fault files
	Sites      string        `mapstructure:"sites"`
	EventYear  float64       `mapstructure:"event_year"`
	Epochs     []int         `mapstructure:"epochs"`
	Outputs    string        `mapstructure:"outputs"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Workers    int           `mapstructure:"workers"`
	TempDir    string        `mapstructure:"temp_dir"`
	Table      string        `mapstructure:"table"`
	Info       []infoConfig  `mapstructure:"info"`
	Metrics    string        `mapstructure:"metrics"`
	LogLevel   string        `mapstructure:"log_level"`
}

// infoConfig is one model parameter annotation of the table.
type infoConfig struct {
	Key   string  `mapstructure:"key"`
	Value float64 `mapstructure:"value"`
	Unit  string  `mapstructure:"unit"`
}

func main() {
	defer exit.Handler()
	fs := flag.NewFlagSet("gmk", flag.ContinueOnError)
	fs.StringP("config", "c", "gmk.yaml", "YAML configuration file")
	fs.Int("workers", 0, "simulator jobs run concurrently")
	fs.Bool("import-only", false, "skip running the simulator")
	fs.BoolP("version", "v", false, "display version and copyright")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		exit.Log(err)
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		return
	}
	c, err := loadConfig(fs)
	if err != nil {
		exit.Log(err)
	}
	zc := zap.NewProductionConfig()
	if zc.Level, err = zap.ParseAtomicLevel(c.LogLevel); err != nil {
		exit.Log(err)
	}
	log, err := zc.Build()
	if err != nil {
		exit.Log(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	importOnly, _ := fs.GetBool("import-only")
	if err = run(ctx, c, !importOnly, log, m); err != nil {
		exit.Log(err)
	}
	if c.Metrics != "" {
		if err = metrics.WriteFile(c.Metrics, reg); err != nil {
			exit.Log(err)
		}
	}
}

func loadConfig(fs *flag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetDefault("args", []string{})
	v.SetDefault("earth_files", []string{"earth.model", "decay.out", "decay4.out", "vsph.out", "vtor.out"})
	v.SetDefault("outputs", "outs")
	v.SetDefault("timeout", 6*time.Hour)
	v.SetDefault("workers", 1)
	v.SetDefault("log_level", "info")
	if f := fs.Lookup("config"); f != nil {
		v.SetConfigFile(f.Value.String())
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, occerr.Wrap(occerr.ErrConfiguration, "gmk", err)
		}
	}
	v.SetEnvPrefix("GMK")
	v.AutomaticEnv()
	if f := fs.Lookup("workers"); f != nil {
		_ = v.BindPFlag("workers", f)
	}
	c := &config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "gmk", err)
	}
	return c, c.validate()
}

func (c *config) validate() error {
	var errs []error
	if c.Program == "" {
		errs = append(errs, errors.New("program: none given"))
	}
	if c.Subfaults == "" || c.Sites == "" {
		errs = append(errs, errors.New("subfaults and sites required"))
	}
	if len(c.Epochs) == 0 {
		errs = append(errs, errors.New("epochs: none given"))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("table: no output file"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: %d", c.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return occerr.Wrap(occerr.ErrConfiguration, "gmk", err)
	}
	return nil
}

// run runs the simulator for every epoch and sub-fault, then imports the
// outputs into a new table.
func run(ctx context.Context, c *config, simulate bool, log *zap.Logger, m *metrics.Metrics) error {
	subs, err := filepath.Glob(c.Subfaults)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return occerr.Configuration("gmk", "no sub-fault files match %s", c.Subfaults)
	}
	ep := make([]epochal.Epoch, len(c.Epochs))
	for i, e := range c.Epochs {
		ep[i] = epochal.Epoch(e)
	}
	epochs, err := epochal.NewList(ep...)
	if err != nil {
		return err
	}
	if simulate {
		jobs, err := c.jobs(epochs, subs)
		if err != nil {
			return err
		}
		log.Info("simulating", zap.Int("jobs", len(jobs)), zap.Int("workers", c.Workers))
		p := simrun.Pool{Size: c.Workers, Log: log, Metrics: m}
		if _, err = p.Run(ctx, jobs); err != nil {
			return err
		}
	}

	f, err := epochal.Create(c.Table)
	if err != nil {
		return err
	}
	extra := map[string]any{}
	attrs := map[string]map[string]any{}
	for _, in := range c.Info {
		extra[in.Key] = in.Value
		if in.Unit != "" {
			attrs[in.Key] = map[string]any{"unit": in.Unit}
		}
	}
	err = pollitz.Import(pollitz.Config{
		Dir:          c.Outputs,
		Epochs:       epochs,
		NumSubfaults: len(subs),
		SitesFile:    c.Sites,
		Extra:        extra,
		ExtraAttrs:   attrs,
		Log:          log,
	}, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	log.Info("table written", zap.String("file", c.Table), zap.Int("subfaults", len(subs)))
	return nil
}

// jobs builds one simulator job per epoch and sub-fault.
func (c *config) jobs(epochs epochal.List, subs []string) ([]simrun.Job, error) {
	sites, err := dataLines(c.Sites)
	if err != nil {
		return nil, err
	}
	var deploy []string
	for _, f := range c.EarthFiles {
		deploy = append(deploy, filepath.Join(c.EarthDir, f))
	}
	var jobs []simrun.Job
	for _, day := range epochs.Slice() {
		for n, sf := range subs {
			flt, err := dataLines(sf)
			if err != nil {
				return nil, err
			}
			if len(flt) == 0 {
				return nil, occerr.Configuration("gmk", "%s: empty sub-fault file", sf)
			}
			name := strings.TrimSuffix(pollitz.FileName(day, n), ".out")
			jobs = append(jobs, simrun.Job{
				Name:    name,
				Program: c.Program,
				Args:    c.Args,
				Deploy:  deploy,
				Stdin:   stdin(flt, sites, c.EventYear, day),
				Output:  "out",
				Target:  filepath.Join(c.Outputs, pollitz.FileName(day, n)),
				Timeout: c.Timeout,
				TempDir: c.TempDir,
				Stderr:  os.Stderr,
			})
		}
	}
	return jobs, nil
}

// stdin forms simulator input for a sub-fault and day: the fault header,
// the time window from the event to the day, the fault segments, then the
// sites.
func stdin(flt, sites []string, eventYear float64, day epochal.Epoch) []byte {
	t1 := eventYear
	t2 := eventYear + float64(day)/365.25
	var b strings.Builder
	b.WriteString("Comment Line.\n")
	b.WriteString(flt[0] + "\n")
	fmt.Fprintf(&b, "%f %f %f 1.\n", t1, t1, t2)
	for _, l := range flt[1:] {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "%d\n", len(sites))
	for _, l := range sites {
		b.WriteString(l + "\n")
	}
	b.WriteString("0\n0\nout")
	return []byte(b.String())
}

// dataLines returns the non-blank lines of a file not starting with #.
func dataLines(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l := sc.Text()
		if t := strings.TrimSpace(l); t == "" || t[0] == '#' {
			continue
		}
		lines = append(lines, l)
	}
	return lines, sc.Err()
}
