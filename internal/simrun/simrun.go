// Public domain.

// Package simrun runs external simulation programs in scoped workspaces.
//
// Each job gets a fresh temporary directory holding copies of the files it
// needs.  The program runs there with its input on stdin, one output file
// is copied out, and the directory is removed however the job ends.
package simrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/viscoinv/occam/internal/metrics"
	"github.com/viscoinv/occam/internal/occerr"
)

// Job is one program invocation.
type Job struct {
	Name    string
	Program string
	Args    []string
	Deploy  []string // files copied into the workspace under their base names
	Stdin   []byte
	Output  string // file the program writes, relative to the workspace
	Target  string // where Output is copied to
	Timeout time.Duration
	TempDir string // parent of the workspace, default os.TempDir()
	Stdout  io.Writer
	Stderr  io.Writer
}

func (j *Job) validate() error {
	const op = "simrun.Run"
	switch {
	case j.Program == "":
		return occerr.Configuration(op, "job %s: no program", j.Name)
	case j.Output == "" || filepath.IsAbs(j.Output):
		return occerr.Configuration(op, "job %s: output %q must be a relative path", j.Name, j.Output)
	case j.Target == "":
		return occerr.Configuration(op, "job %s: no target", j.Name)
	}
	for _, f := range j.Deploy {
		if _, err := os.Stat(f); err != nil {
			return occerr.Wrap(occerr.ErrConfiguration, op, err)
		}
	}
	return nil
}

// Run runs one job.
func Run(ctx context.Context, j Job) (err error) {
	if err = j.validate(); err != nil {
		return err
	}
	ws, err := os.MkdirTemp(j.TempDir, "simrun-")
	if err != nil {
		return err
	}
	defer func() {
		if rerr := os.RemoveAll(ws); err == nil {
			err = rerr
		}
	}()
	for _, f := range j.Deploy {
		if err = copyFile(filepath.Join(ws, filepath.Base(f)), f); err != nil {
			return err
		}
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, j.Program, j.Args...)
	cmd.Dir = ws
	cmd.Stdin = bytes.NewReader(j.Stdin)
	cmd.Stdout = j.Stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if j.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, j.Stderr)
	}
	if err = cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return fmt.Errorf("simrun: job %s: %s: %w: %s", j.Name, j.Program, err, tail(stderr.Bytes()))
	}

	if dir := filepath.Dir(j.Target); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err = copyFile(j.Target, filepath.Join(ws, j.Output)); err != nil {
		return fmt.Errorf("simrun: job %s: %w", j.Name, err)
	}
	return nil
}

// tail returns the last line or so of program diagnostics.
func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > 200 {
		b = b[len(b)-200:]
	}
	return string(b)
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Outcome reports a job run by a Pool.
type Outcome struct {
	Name    string
	Skipped bool // target existed
	Elapsed time.Duration
	Err     error
}

// Pool runs jobs concurrently.
type Pool struct {
	Size    int // concurrent jobs, at least 1
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Run runs jobs, skipping those whose target already exists.  A failed
// job does not stop the others; its error is in its Outcome.  Run returns
// the joined job errors, or the context error if ctx ended first.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(p.Size, 1))
	for i, j := range jobs {
		out[i].Name = j.Name
		if _, err := os.Stat(j.Target); err == nil {
			log.Info("target exists, skipped", zap.String("job", j.Name), zap.String("target", j.Target))
			out[i].Skipped = true
			p.Metrics.ObserveSimulation("skipped")
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			start := time.Now()
			err := Run(ctx, j)
			out[i].Elapsed, out[i].Err = time.Since(start), err
			if err != nil {
				log.Warn("job failed", zap.String("job", j.Name), zap.Error(err))
				p.Metrics.ObserveSimulation("failed")
				return nil
			}
			log.Info("job done", zap.String("job", j.Name),
				zap.Duration("elapsed", out[i].Elapsed), zap.String("target", j.Target))
			p.Metrics.ObserveSimulation("ok")
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}
	var errs []error
	for _, o := range out {
		errs = append(errs, o.Err)
	}
	return out, errors.Join(errs...)
}
