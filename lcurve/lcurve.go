// Public domain.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/soniakeys/exit"
	flag "github.com/spf13/pflag"

	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/occsolver"
	"github.com/viscoinv/occam/internal/results"
)

const versionString = "lcurve version 0.2"
const copyrightString = "Public domain."

type options struct {
	trial string
	fault string
	mu    float64
}

func main() {
	defer exit.Handler()
	fs := flag.NewFlagSet("lcurve", flag.ContinueOnError)
	var opt options
	fs.StringVarP(&opt.trial, "trial", "t", "", "show only this trial")
	fs.StringVarP(&opt.fault, "fault", "f", "", "fault file, for seismic moment of the selected slip")
	fs.Float64Var(&opt.mu, "mu", 4e10, "shear modulus, Pa")
	vers := fs.BoolP("version", "v", false, "display version and copyright")
	fs.Usage = func() {
		os.Stderr.WriteString("Usage: lcurve [options] <results.db> [run-id | last]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		exit.Log(err)
	}
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		return
	}
	if n := fs.NArg(); n < 1 || n > 2 {
		fs.Usage()
		os.Exit(1)
	}
	db, err := results.Open(fs.Arg(0))
	if err != nil {
		exit.Log(err)
	}
	defer db.Close()
	ctx := context.Background()
	if fs.NArg() == 1 {
		err = listRuns(ctx, os.Stdout, db)
	} else {
		err = showRun(ctx, os.Stdout, db, fs.Arg(1), opt)
	}
	if err != nil {
		exit.Log(err)
	}
}

func listRuns(ctx context.Context, w io.Writer, db *results.DB) error {
	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "run                                   started               trials  selected")
	for _, r := range runs {
		sel := "-"
		if r.Selected.Valid {
			sel = "yes"
		}
		fmt.Fprintf(w, "%s  %s  %6d  %s\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Trials, sel)
	}
	return nil
}

// resolveRun parses a run id, "last" being the most recent run.
func resolveRun(ctx context.Context, db *results.DB, arg string) (uuid.UUID, error) {
	if arg != "last" {
		return uuid.Parse(arg)
	}
	runs, err := db.Runs(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(runs) == 0 {
		return uuid.Nil, fmt.Errorf("%s: no runs: %w", db.Path(), results.ErrNotFound)
	}
	return runs[len(runs)-1].ID, nil
}

func showRun(ctx context.Context, w io.Writer, db *results.DB, arg string, opt options) error {
	run, err := resolveRun(ctx, db, arg)
	if err != nil {
		return err
	}
	trials := []string{opt.trial}
	if opt.trial == "" {
		if trials, err = db.Trials(ctx, run); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "Run:", run)
	for _, t := range trials {
		c, err := db.LCurve(ctx, run, t)
		if err != nil {
			return err
		}
		printCurve(w, c)
	}

	sel, err := db.Selected(ctx, run)
	if errors.Is(err, results.ErrNotFound) {
		fmt.Fprintln(w, "\nNo selection.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nSelected: trial %s alpha %g\n", sel.Trial, sel.Alpha)
	for _, v := range sel.NonLin {
		fmt.Fprintf(w, "  %-12s %.5g (reference %.5g + %.4g x %.4g)\n",
			v.Label, v.Value, v.Reference, v.Correction, v.Step)
	}
	if opt.fault == "" {
		return nil
	}
	f, err := fault.ReadFile(opt.fault)
	if err != nil {
		return err
	}
	if f.NumPatches() != sel.Patches {
		return fmt.Errorf("fault %s has %d patches, solution %d", opt.fault, f.NumPatches(), sel.Patches)
	}
	fmt.Fprintln(w, "\n  epoch        Mo (N m)     Mw")
	for k, e := range sel.Epochs {
		mo, mw, err := f.Moment(sel.SlipAt(k), fault.Uniform(opt.mu))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %5d  %14.4e  %5.2f\n", e, mo, mw)
	}
	return nil
}

// printCurve prints one trial's L-curve with its corner, and the corner
// found again from the stored points when the two disagree.
func printCurve(w io.Writer, c *results.Curve) {
	fmt.Fprintf(w, "\nTrial %s\n", c.Trial)
	fmt.Fprintln(w, "       alpha      misfit   roughness     log(misfit)  log(rough)")
	for i, p := range c.Points {
		if p.Gap() {
			fmt.Fprintf(w, "  %10.4g  gap: %v\n", p.Alpha, p.Err)
			continue
		}
		mark := ""
		if i == c.Corner {
			mark = "  corner"
		}
		fmt.Fprintf(w, "  %10.4g %11.5g %11.5g %15.4f %11.4f%s\n", p.Alpha,
			p.Solution.Misfit, p.Solution.Roughness,
			math.Log10(p.Solution.Misfit), math.Log10(p.Solution.Roughness), mark)
	}
	if k := occsolver.Corner(c.Points); k != c.Corner {
		fmt.Fprintf(w, "  note: stored corner %d, recomputed %d\n", c.Corner, k)
	}
}
