// Public domain.

package simrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viscoinv/occam/internal/metrics"
	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/simrun"
)

const sh = "/bin/sh"

func setup(t *testing.T) (dir, tmp string) {
	t.Helper()
	if _, err := os.Stat(sh); err != nil {
		t.Skip("no", sh)
	}
	dir = t.TempDir()
	tmp = filepath.Join(dir, "tmp")
	require.NoError(t, os.Mkdir(tmp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "earth.model"), []byte("layers\n"), 0o644))
	return dir, tmp
}

func job(dir, tmp, name, script string) simrun.Job {
	return simrun.Job{
		Name:    name,
		Program: sh,
		Args:    []string{"-c", script},
		Deploy:  []string{filepath.Join(dir, "earth.model")},
		Stdin:   []byte("day 10\n"),
		Output:  "out",
		Target:  filepath.Join(dir, "outs", name+".out"),
		TempDir: tmp,
	}
}

func assertNoWorkspace(t *testing.T, tmp string) {
	t.Helper()
	ents, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, ents, "workspace left behind")
}

func TestRun(t *testing.T) {
	dir, tmp := setup(t)
	j := job(dir, tmp, "a", "cat earth.model - > out")
	require.NoError(t, simrun.Run(context.Background(), j))
	b, err := os.ReadFile(j.Target)
	require.NoError(t, err)
	assert.Equal(t, "layers\nday 10\n", string(b))
	assertNoWorkspace(t, tmp)
}

func TestRunFailure(t *testing.T) {
	dir, tmp := setup(t)
	j := job(dir, tmp, "a", "echo bad layer >&2; exit 3")
	err := simrun.Run(context.Background(), j)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad layer")
	assertNoWorkspace(t, tmp)
	_, err = os.Stat(j.Target)
	assert.True(t, os.IsNotExist(err))

	// program succeeded but wrote no output
	j = job(dir, tmp, "b", "true")
	assert.Error(t, simrun.Run(context.Background(), j))
	assertNoWorkspace(t, tmp)
}

func TestRunTimeout(t *testing.T) {
	dir, tmp := setup(t)
	j := job(dir, tmp, "a", "exec sleep 10")
	j.Timeout = 50 * time.Millisecond
	err := simrun.Run(context.Background(), j)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertNoWorkspace(t, tmp)
}

func TestRunInvalid(t *testing.T) {
	dir, tmp := setup(t)
	j := job(dir, tmp, "a", "true")
	j.Deploy = append(j.Deploy, filepath.Join(dir, "vsph.out"))
	assert.ErrorIs(t, simrun.Run(context.Background(), j), occerr.ErrConfiguration)
	j = job(dir, tmp, "a", "true")
	j.Output = "/out"
	assert.ErrorIs(t, simrun.Run(context.Background(), j), occerr.ErrConfiguration)
	j.Output, j.Program = "out", ""
	assert.ErrorIs(t, simrun.Run(context.Background(), j), occerr.ErrConfiguration)
}

func TestPool(t *testing.T) {
	dir, tmp := setup(t)
	jobs := []simrun.Job{
		job(dir, tmp, "day_0000", "cat - > out"),
		job(dir, tmp, "day_0010", "cat - > out"),
		job(dir, tmp, "day_0020", "exit 1"),
		job(dir, tmp, "day_0030", "cat - > out"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(jobs[3].Target), 0o755))
	require.NoError(t, os.WriteFile(jobs[3].Target, []byte("old\n"), 0o644))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := simrun.Pool{Size: 2, Log: zaptest.NewLogger(t), Metrics: m}
	out, err := p.Run(context.Background(), jobs)
	require.Error(t, err)
	require.Len(t, out, 4)
	assert.NoError(t, out[0].Err)
	assert.NoError(t, out[1].Err)
	assert.Error(t, out[2].Err)
	assert.True(t, out[3].Skipped)
	b, err := os.ReadFile(jobs[3].Target)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(b))
	assertNoWorkspace(t, tmp)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SimulationRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationRuns.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationRuns.WithLabelValues("skipped")))

	// a second pass skips everything that succeeded
	out, err = p.Run(context.Background(), jobs[:2])
	require.NoError(t, err)
	assert.True(t, out[0].Skipped)
	assert.True(t, out[1].Skipped)
}

func TestPoolCancelled(t *testing.T) {
	dir, tmp := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := simrun.Pool{Size: 1}
	out, err := p.Run(ctx, []simrun.Job{job(dir, tmp, "a", "cat - > out")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
}
