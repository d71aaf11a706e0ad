// Public domain.

// Package occprog is the occam program: configuration, input loading, the
// inversion run and its outputs.
package occprog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soniakeys/exit"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/viscoinv/occam/internal/metrics"
	"github.com/viscoinv/occam/internal/occsolver"
	"github.com/viscoinv/occam/internal/results"
)

const versionString = "occam version 0.3 Go source."
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := Run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		exit.Log(err)
	}
}

// Run runs occam with command line args, writing the L-curve table to
// stdout.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := Flags("occam")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Fprintln(stdout, versionString)
		fmt.Fprintln(stdout, copyrightString)
		return nil
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected arguments %v", fs.Args())
	}
	cfg, err := Load(fs)
	if err != nil {
		return err
	}
	log, err := NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	in, err := open(cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d, err := occsolver.NewDriver(cfg.driverConfig(in),
		occsolver.WithLogger(log), occsolver.WithMetrics(m))
	if err != nil {
		return err
	}
	rep, runErr := d.Run(ctx, in.trials)
	printReport(stdout, rep)

	var errs []error
	if p := cfg.Output.Results; p != "" {
		err := saveResults(ctx, p, rep)
		if err == nil {
			log.Info("results saved", zap.String("file", p), zap.Stringer("run", rep.RunID))
		}
		errs = append(errs, err)
	}
	if p := cfg.Output.Report; p != "" {
		errs = append(errs, writeReport(p, rep))
	}
	if p := cfg.Output.Metrics; p != "" {
		errs = append(errs, metrics.WriteFile(p, reg))
	}
	return errors.Join(append(errs, runErr)...)
}

func saveResults(ctx context.Context, path string, rep *occsolver.Report) error {
	db, err := results.Open(path)
	if err != nil {
		return err
	}
	// saved even when ctx is done, so an interrupted run keeps what it has
	if err = db.SaveReport(context.WithoutCancel(ctx), rep); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}
