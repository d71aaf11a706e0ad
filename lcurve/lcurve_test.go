// Public domain.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscoinv/occam/internal/epochal"
	"github.com/viscoinv/occam/internal/fault"
	"github.com/viscoinv/occam/internal/green"
	"github.com/viscoinv/occam/internal/occsolver"
	"github.com/viscoinv/occam/internal/results"
	"github.com/viscoinv/occam/internal/synth"
)

func saved(t *testing.T, dir string) (*results.DB, *fault.Model) {
	t.Helper()
	f := &fault.Model{Rows: 2, Cols: 2, PatchStrike: 10, PatchDip: 10,
		TopDepth: 1, Dip: unit.AngleFromDeg(30)}
	ids, err := synth.SiteIDs(2)
	require.NoError(t, err)
	geo := synth.Geometry{Fault: f, Sites: ids, Seed: 1}
	ep := epochal.MustList(0, 20)
	a, err := synth.Table(geo, ep, 50, "", 0)
	require.NoError(t, err)
	g, err := green.New(a, ids)
	require.NoError(t, err)
	oa, err := synth.Observations(g, ep, synth.Growing(synth.Checkerboard(f, 1, 2), 2), 0.01, 9)
	require.NoError(t, err)
	obs, err := green.New(oa, ids)
	require.NoError(t, err)
	d, err := occsolver.NewDriver(occsolver.Config{Observation: obs, Epochs: ep, Fault: f,
		Alphas: []float64{0.1, 1, 10, 100}})
	require.NoError(t, err)
	rep, err := d.Run(context.Background(), []occsolver.Trial{{Name: "tau50", Reference: g}})
	require.NoError(t, err)
	require.NotNil(t, rep.Best)

	db, err := results.Open(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SaveReport(context.Background(), rep))
	return db, f
}

func TestShowRun(t *testing.T) {
	dir := t.TempDir()
	db, f := saved(t, dir)
	ff := filepath.Join(dir, "fault.gob")
	require.NoError(t, fault.WriteFile(ff, f))
	ctx := context.Background()

	var b bytes.Buffer
	require.NoError(t, listRuns(ctx, &b, db))
	assert.Contains(t, b.String(), "yes")

	b.Reset()
	require.NoError(t, showRun(ctx, &b, db, "last", options{fault: ff, mu: 3e10}))
	out := b.String()
	assert.Contains(t, out, "Trial tau50")
	assert.Contains(t, out, "corner")
	assert.NotContains(t, out, "note:")
	assert.Contains(t, out, "Selected: trial tau50")
	assert.Contains(t, out, "Mo (N m)")

	b.Reset()
	assert.Error(t, showRun(ctx, &b, db, "not-a-uuid", options{}))
	assert.ErrorIs(t, showRun(ctx, &b, db, "last", options{trial: "nope"}), results.ErrNotFound)
}

func TestShowRunEmpty(t *testing.T) {
	db, err := results.Open(filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer db.Close()
	var b bytes.Buffer
	assert.ErrorIs(t, showRun(context.Background(), &b, db, "last", options{}), results.ErrNotFound)
}
