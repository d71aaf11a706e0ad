// Public domain.

package occprog

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viscoinv/occam/internal/occsolver"
)

// printReport writes the L-curve of every trial, in trial order, marking
// corners with "*" and the selected solution with "**".
func printReport(w io.Writer, rep *occsolver.Report) {
	fmt.Fprintln(w, "trial               alpha      misfit   roughness")
	for _, tr := range rep.Trials {
		if tr.Err != nil {
			fmt.Fprintf(w, "%-12s  failed: %v\n", tr.Name, tr.Err)
			continue
		}
		for i, p := range tr.Points {
			if p.Gap() {
				fmt.Fprintf(w, "%-12s %10.3g  gap: %v\n", tr.Name, p.Alpha, p.Err)
				continue
			}
			mark := ""
			if i == tr.Corner {
				mark = " *"
				if b := rep.Best; b != nil && b.Trial() == tr.Name && b.Alpha() == p.Alpha {
					mark = " **"
				}
			}
			fmt.Fprintf(w, "%-12s %10.3g %11.5g %11.5g%s\n",
				tr.Name, p.Alpha, p.Solution.Misfit, p.Solution.Roughness, mark)
		}
	}
	if b := rep.Best; b != nil {
		fmt.Fprintf(w, "\nselected %s alpha %g\n", b.Trial(), b.Alpha())
		for _, v := range b.NonLin() {
			fmt.Fprintf(w, "  %s = %.5g (reference %.5g, correction %.4g steps of %.4g)\n",
				v.Label, v.Value, v.Reference, v.Correction, v.Step)
		}
	}
}

type reportDoc struct {
	Run      string       `yaml:"run"`
	Started  time.Time    `yaml:"started"`
	Finished time.Time    `yaml:"finished"`
	Trials   []trialDoc   `yaml:"trials"`
	Selected *selectedDoc `yaml:"selected,omitempty"`
}

type trialDoc struct {
	Name   string     `yaml:"name"`
	Error  string     `yaml:"error,omitempty"`
	Corner *float64   `yaml:"corner_alpha,omitempty"`
	Points []pointDoc `yaml:"points"`
}

type pointDoc struct {
	Alpha     float64  `yaml:"alpha"`
	Misfit    *float64 `yaml:"misfit,omitempty"`
	Roughness *float64 `yaml:"roughness,omitempty"`
	Gap       string   `yaml:"gap,omitempty"`
}

type selectedDoc struct {
	ID        string      `yaml:"id"`
	Trial     string      `yaml:"trial"`
	Alpha     float64     `yaml:"alpha"`
	Misfit    float64     `yaml:"misfit"`
	Roughness float64     `yaml:"roughness"`
	NonLin    []nonLinDoc `yaml:"nonlin,omitempty"`
}

type nonLinDoc struct {
	Label         string   `yaml:"label"`
	Reference     *float64 `yaml:"reference,omitempty"`
	Step          *float64 `yaml:"step,omitempty"`
	Linearization float64  `yaml:"linearization,omitempty"`
	Correction    float64  `yaml:"correction"`
	Value         *float64 `yaml:"value,omitempty"`
}

func known(x float64) *float64 {
	if math.IsNaN(x) {
		return nil
	}
	return &x
}

func newReportDoc(rep *occsolver.Report) *reportDoc {
	d := &reportDoc{
		Run:      rep.RunID.String(),
		Started:  rep.Started.UTC(),
		Finished: rep.Finished.UTC(),
	}
	for _, tr := range rep.Trials {
		td := trialDoc{Name: tr.Name}
		if tr.Err != nil {
			td.Error = tr.Err.Error()
		}
		if tr.Corner >= 0 {
			td.Corner = &tr.Points[tr.Corner].Alpha
		}
		for _, p := range tr.Points {
			pd := pointDoc{Alpha: p.Alpha}
			if p.Gap() {
				pd.Gap = p.Err.Error()
			} else {
				pd.Misfit, pd.Roughness = known(p.Solution.Misfit), known(p.Solution.Roughness)
			}
			td.Points = append(td.Points, pd)
		}
		d.Trials = append(d.Trials, td)
	}
	if b := rep.Best; b != nil {
		sd := &selectedDoc{
			ID:        b.ID().String(),
			Trial:     b.Trial(),
			Alpha:     b.Alpha(),
			Misfit:    b.Misfit(),
			Roughness: b.Roughness(),
		}
		for _, v := range b.NonLin() {
			sd.NonLin = append(sd.NonLin, nonLinDoc{
				Label:         v.Label,
				Reference:     known(v.Reference),
				Step:          known(v.Step),
				Linearization: v.Linearization,
				Correction:    v.Correction,
				Value:         known(v.Value),
			})
		}
		d.Selected = sd
	}
	return d
}

// writeReport writes rep as YAML to path.
func writeReport(path string, rep *occsolver.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err = enc.Encode(newReportDoc(rep)); err != nil {
		f.Close()
		return err
	}
	if err = enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
