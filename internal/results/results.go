// Public domain.

// Package results persists inversion reports in an SQLite database.
//
// A database accumulates runs.  For each run it keeps every L-curve point
// of every trial, gaps included, and the solution at each trial's corner.
// The solution chosen across trials is marked as the run's selection.
package results

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/viscoinv/occam/internal/occerr"
	"github.com/viscoinv/occam/internal/occsolver"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	started  TEXT NOT NULL,
	finished TEXT NOT NULL,
	trials   INTEGER NOT NULL,
	selected TEXT
);
CREATE TABLE IF NOT EXISTS lcurve (
	run       TEXT NOT NULL,
	trial     TEXT NOT NULL,
	idx       INTEGER NOT NULL,
	alpha     REAL NOT NULL,
	misfit    REAL,
	roughness REAL,
	kind      TEXT NOT NULL,
	error     TEXT NOT NULL,
	corner    INTEGER NOT NULL,
	PRIMARY KEY (run, trial, idx)
);
CREATE TABLE IF NOT EXISTS results (
	id        TEXT PRIMARY KEY,
	run       TEXT NOT NULL,
	trial     TEXT NOT NULL,
	alpha     REAL NOT NULL,
	misfit    REAL NOT NULL,
	roughness REAL NOT NULL,
	epochs    TEXT NOT NULL,
	sites     TEXT NOT NULL,
	patches   INTEGER NOT NULL,
	m         BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS nonlin (
	result        TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	label         TEXT NOT NULL,
	reference     REAL,
	step          REAL,
	linearization REAL NOT NULL DEFAULT 0,
	correction    REAL NOT NULL,
	value         REAL,
	PRIMARY KEY (result, idx)
);`

// timeFormat sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a run, trial or result is not stored.
var ErrNotFound = errors.New("not found")

// DB is a results database.
type DB struct {
	path string
	db   *sql.DB
}

// Open opens path, creating the database if needed.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("results.Open %s: %w", path, err)
	}
	return &DB{path: path, db: db}, nil
}

func (d *DB) Path() string { return d.path }

func (d *DB) Close() error { return d.db.Close() }

// Run summarizes a stored run.
type Run struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Trials   int
	Selected uuid.NullUUID
}

// Curve is the stored L-curve of one trial.  Gaps carry an error holding
// the recorded message; its kind survives for errors.Is.
type Curve struct {
	Trial  string
	Points []occsolver.Point
	Corner int
}

// Record is a stored solution.
type Record struct {
	ID        uuid.UUID
	Run       uuid.UUID
	Trial     string
	Alpha     float64
	Misfit    float64
	Roughness float64
	Epochs    []int
	Sites     []string
	Patches   int
	M         []float64
	NonLin    []occsolver.NonLinValue
}

// SlipAt returns the slip of each patch at epoch block k.
func (r *Record) SlipAt(k int) []float64 {
	return r.M[k*r.Patches : (k+1)*r.Patches]
}

// SaveReport stores a run in one transaction.
func (d *DB) SaveReport(ctx context.Context, rep *occsolver.Report) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var selected uuid.NullUUID
	if rep.Best != nil {
		selected = uuid.NullUUID{UUID: rep.Best.ID(), Valid: true}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, finished, trials, selected) VALUES (?, ?, ?, ?, ?)`,
		rep.RunID.String(), rep.Started.UTC().Format(timeFormat),
		rep.Finished.UTC().Format(timeFormat), len(rep.Trials), selected); err != nil {
		return fmt.Errorf("results: run %s: %w", rep.RunID, err)
	}
	for _, tr := range rep.Trials {
		if err = saveCurve(ctx, tx, rep.RunID, tr); err != nil {
			return err
		}
		if tr.Corner < 0 {
			continue
		}
		var res *occsolver.Result
		if b := rep.Best; b != nil && b.Trial() == tr.Name &&
			b.Alpha() == tr.Points[tr.Corner].Alpha {
			res = b
		} else if res, err = tr.Result(tr.Corner); err != nil {
			return err
		}
		if err = saveResult(ctx, tx, rep.RunID, res); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveCurve(ctx context.Context, tx *sql.Tx, run uuid.UUID, tr occsolver.TrialReport) error {
	for i, p := range tr.Points {
		var misfit, rough sql.NullFloat64
		var kind, msg string
		corner := 0
		if i == tr.Corner {
			corner = 1
		}
		if p.Gap() {
			msg = p.Err.Error()
			if k := occerr.KindOf(p.Err); k != nil {
				kind = k.Error()
			}
		} else {
			misfit = sql.NullFloat64{Float64: p.Solution.Misfit, Valid: true}
			rough = sql.NullFloat64{Float64: p.Solution.Roughness, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO lcurve
			(run, trial, idx, alpha, misfit, roughness, kind, error, corner)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.String(), tr.Name, i, p.Alpha, misfit, rough, kind, msg, corner); err != nil {
			return fmt.Errorf("results: trial %s point %d: %w", tr.Name, i, err)
		}
	}
	return nil
}

func saveResult(ctx context.Context, tx *sql.Tx, run uuid.UUID, r *occsolver.Result) error {
	l := r.Layout()
	ep, err := json.Marshal(l.Epochs.Slice())
	if err != nil {
		return err
	}
	st, err := json.Marshal(l.Sites.Strings())
	if err != nil {
		return err
	}
	var m bytes.Buffer
	if err = gob.NewEncoder(&m).Encode(r.M()); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO results
		(id, run, trial, alpha, misfit, roughness, epochs, sites, patches, m)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID().String(), run.String(), r.Trial(), r.Alpha(), r.Misfit(), r.Roughness(),
		string(ep), string(st), l.Patches, m.Bytes()); err != nil {
		return fmt.Errorf("results: result %s: %w", r.ID(), err)
	}
	for j, v := range r.NonLin() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO nonlin
			(result, idx, label, reference, step, linearization, correction, value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID().String(), j, v.Label, nullable(v.Reference), nullable(v.Step),
			v.Linearization, v.Correction, nullable(v.Value)); err != nil {
			return fmt.Errorf("results: result %s %s: %w", r.ID(), v.Label, err)
		}
	}
	return nil
}

// nullable stores NaN as NULL.
func nullable(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsNaN(x)}
}

func orNaN(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}

// Runs lists stored runs, oldest first.
func (d *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, started, finished, trials, selected FROM runs ORDER BY started`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err = rows.Scan(&r.ID, &started, &finished, &r.Trials, &r.Selected); err != nil {
			return nil, err
		}
		if r.Started, err = time.Parse(timeFormat, started); err != nil {
			return nil, err
		}
		if r.Finished, err = time.Parse(timeFormat, finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trials lists the trial names of a run in the order they were run.
func (d *DB) Trials(ctx context.Context, run uuid.UUID) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT trial FROM lcurve WHERE run = ?
		GROUP BY trial ORDER BY MIN(rowid)`, run.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err = rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("results: run %s: %w", run, ErrNotFound)
	}
	return names, nil
}

// LCurve reads the L-curve of a trial, in the alpha order it was swept.
func (d *DB) LCurve(ctx context.Context, run uuid.UUID, trial string) (*Curve, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT alpha, misfit, roughness, kind, error, corner
		FROM lcurve WHERE run = ? AND trial = ? ORDER BY idx`, run.String(), trial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c := &Curve{Trial: trial, Corner: -1}
	for rows.Next() {
		var p occsolver.Point
		var misfit, rough sql.NullFloat64
		var kind, msg string
		var corner bool
		if err = rows.Scan(&p.Alpha, &misfit, &rough, &kind, &msg, &corner); err != nil {
			return nil, err
		}
		if misfit.Valid {
			p.Solution = &occsolver.Solution{Alpha: p.Alpha,
				Misfit: misfit.Float64, Roughness: orNaN(rough)}
		} else {
			p.Err = storedError(kind, msg)
		}
		if corner {
			c.Corner = len(c.Points)
		}
		c.Points = append(c.Points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(c.Points) == 0 {
		return nil, fmt.Errorf("results: run %s trial %s: %w", run, trial, ErrNotFound)
	}
	return c, nil
}

// storedError rebuilds a gap error from its recorded kind and message.
func storedError(kind, msg string) error {
	for _, k := range []error{occerr.ErrRange, occerr.ErrConsistency,
		occerr.ErrConfiguration, occerr.ErrNumerical} {
		if k.Error() == kind {
			return occerr.Wrap(k, "stored", errors.New(msg))
		}
	}
	return errors.New(msg)
}

// Result reads a stored solution.
func (d *DB) Result(ctx context.Context, id uuid.UUID) (*Record, error) {
	r := &Record{ID: id}
	var ep, st string
	var m []byte
	err := d.db.QueryRowContext(ctx, `SELECT run, trial, alpha, misfit, roughness,
		epochs, sites, patches, m FROM results WHERE id = ?`, id.String()).
		Scan(&r.Run, &r.Trial, &r.Alpha, &r.Misfit, &r.Roughness, &ep, &st, &r.Patches, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("results: result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(ep), &r.Epochs); err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(st), &r.Sites); err != nil {
		return nil, err
	}
	if err = gob.NewDecoder(bytes.NewReader(m)).Decode(&r.M); err != nil {
		return nil, fmt.Errorf("results: result %s: %w", id, err)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT label, reference, step, linearization, correction, value
		FROM nonlin WHERE result = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v occsolver.NonLinValue
		var ref, step, val sql.NullFloat64
		if err = rows.Scan(&v.Label, &ref, &step, &v.Linearization, &v.Correction, &val); err != nil {
			return nil, err
		}
		v.Reference, v.Step, v.Value = orNaN(ref), orNaN(step), orNaN(val)
		r.NonLin = append(r.NonLin, v)
	}
	return r, rows.Err()
}

// Selected reads the solution selected for a run.
func (d *DB) Selected(ctx context.Context, run uuid.UUID) (*Record, error) {
	var sel uuid.NullUUID
	err := d.db.QueryRowContext(ctx, `SELECT selected FROM runs WHERE id = ?`, run.String()).Scan(&sel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("results: run %s: %w", run, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !sel.Valid {
		return nil, fmt.Errorf("results: run %s: no selection: %w", run, ErrNotFound)
	}
	return d.Result(ctx, sel.UUID)
}

// Corner reads the corner solution of a trial.
func (d *DB) Corner(ctx context.Context, run uuid.UUID, trial string) (*Record, error) {
	var id uuid.UUID
	err := d.db.QueryRowContext(ctx, `SELECT id FROM results WHERE run = ? AND trial = ?`,
		run.String(), trial).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("results: run %s trial %s: no corner: %w", run, trial, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d.Result(ctx, id)
}
