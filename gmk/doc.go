/*
Command gmk prepares a Green's function table for occam.

# Usage

Command line options:

	gmk                    Use gmk.yaml in the current directory.
	gmk -c <config-file>   Specify the configuration file.
	gmk --workers=n        Run n simulator jobs at once.
	gmk --import-only      Import existing simulator outputs only.
	gmk -v                 Display version and copyright.

# Input

The configuration file is YAML:

	program: strainA           # simulator, STATIC1D or VISCO1D
	args: []
	earth_dir: earth           # earth model files from earlier VISCO1D steps
	earth_files: [earth.model, decay.out, decay4.out, vsph.out, vtor.out]
	subfaults: subflts/flt_*.in
	sites: stations.in
	event_year: 2011.19        # decimal year of the event
	epochs: [0, 10, 30]        # days after the event
	outputs: outs
	timeout: 6h
	workers: 4
	table: G_He40km_Vis5.8E18.db
	info:
	  - {key: log10(visM), value: 18.7664}
	  - {key: He, value: 40, unit: km}
	metrics: gmk.prom

The simulator is run once for each epoch and sub-fault file, in a
temporary directory holding copies of the earth model files.  Its input
is formed from the sub-fault file, the time window from the event to the
epoch, and the site file.  Its output is copied to
outs/day_DDDD_flt_FFFF.out.  Outputs already present are not computed
again, so an interrupted gmk can simply be run again.

# Output

The output is an epochal file, an SQLite database holding for each epoch a
(3 x sites) by sub-faults array.  Outputs for days after the event are
added to the day 0 output, so every array is a cumulative displacement.
The table is annotated with its site list, the number of sub-faults and
the configured info.
*/
package main
