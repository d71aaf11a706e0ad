/*
Command occam inverts geodetic displacement time series for fault slip and
a few non-linear earth model parameters, such as mantle viscosity.

# Contents

	Program overview
	Command line usage
	Configuration
	File formats
	Algorithm outline

# Program overview

Input is a set of Green's function tables, each computed by a viscoelastic
simulator for one earth model, and the displacement observed at a set of
GPS sites at a list of epochs (days after the event).  Output is the
L-curve of a damped least squares inversion for each candidate earth
model, and the solution at the corner of the best L-curve: slip on every
fault patch at every epoch, and corrections to the non-linear parameters.

Tables for a reference model and for models with one parameter perturbed
give finite difference sensitivities to that parameter.  The inversion is
linearized about the reference model, in the manner of Occam's inversion.
Several reference models can be tried in one run.  Each one is a trial.

Sample run:

	occam -c occam.yaml

prints

	trial               alpha      misfit   roughness
	visM18.8              1     0.012031      14.218
	visM18.8             10     0.013402      6.0133 **
	visM18.8            100     0.061147     0.99731
	visM18.8           1000      0.42287    0.041196

	selected visM18.8 alpha 10
	  log10(visM) = 18.836 (reference 18.8, correction 0.3633 steps of 0.1)

A "*" marks the corner of a trial's L-curve, "**" the corner selected over
all trials.  Alphas at which the system is rank deficient are reported as
gaps and do not take part in the corner search.

# Command line usage

	occam -c <config-file> [options]
	occam -v                          display version and copyright

Options override the configuration file:

	--alphas=1,10,100    regularization strengths
	--workers=n          trials run concurrently
	--selection=record   keep every L-curve point, choose no corner
	--results=<file>     results database, default results.db
	--report=<file>      L-curve report, YAML
	--metrics=<file>     metrics in node_exporter textfile format
	--synthetic          checkerboard test instead of the observation
	--log-level=debug
	--log-development    console logging instead of JSON

Every configuration key can also be set from the environment, upper case
with an OCCAM_ prefix and "_" for ".", for example OCCAM_LOG_LEVEL=debug.
Precedence is options, environment, configuration file, defaults.

# Configuration

The configuration file is YAML:

	sites: sites.txt            # GPS sites used, one per line
	epochs: [0, 10, 30]         # days after the event
	fault:                      # or file: fault.gob
	  rows: 10
	  cols: 25
	  patch_strike: 28.0        # km
	  patch_dip: 23.03          # km
	  top_depth: 3.0            # km
	  dip: 15.0                 # degrees
	observation:
	  file: cumu_post.db
	  mode: cumulative          # or postseismic
	  sd_file: sd.db            # optional standard deviations
	  sd_default: 0.003         # floor on standard deviations, m
	  sd_sites:
	    - {site: J550, floor: 0.5}
	  linearization: [0.0]
	slip0: slip0.db             # slip the sensitivities are computed for
	trials:
	  - name: visM18.8
	    reference: G0.db
	    perturbed:
	      - {file: G1.db, label: log10(visM)}
	regularization:
	  row_norm_length: 1
	  col_norm_length: 0        # 0 is patch_strike/patch_dip
	  nonlin_damping: 0
	alphas: [1, 10, 100, 1000]
	solver:
	  rcond: 1e-12
	workers: 2
	selection: corner
	output:
	  results: results.db
	  report: lcurve.yaml
	  metrics: occam.prom
	log:
	  level: info

The configuration is checked in full before any input file is opened.

# File formats

Tables, observations, standard deviations and initial slip are epochal
files, SQLite databases holding one array per epoch and named annotations.
A table holds for each epoch a (3 x sites) by patches array, rows east,
north and up for each site, and the annotations "sites", the site list
its rows follow, and one value per model parameter, such as
"log10(visM)".  Observations and standard deviations hold a (3 x sites)
column.  Values at epochs between stored epochs are interpolated
linearly.  Command gmk prepares tables from simulator output.

The site file lists one site identifier per line as the first field.
Blank lines and lines starting with # are ignored.

The results database records each run, the L-curve of each trial and the
corner solutions.  Command lcurve prints them.

# Algorithm outline

1.  For each trial, the Jacobian is assembled from the reference table,
block diagonal in epochs, with one column per non-linear parameter:
the difference of the perturbed and reference tables times the initial
slip.

2.  Observation and Jacobian rows are divided by the standard deviation
of the observation, clipped from below by the configured floors.

3.  A second order smoothing operator penalizes the discrete Laplacian of
slip over the fault, for each epoch.

4.  For each alpha, ||G m - d||² + alpha² ||R m||² is minimized by
singular value decomposition of the stacked system.

5.  The corner of each trial's L-curve is the point of greatest curvature
in log misfit, log roughness space.  Of the trial corners, the one with
least misfit is selected.

-------------
Public domain.
*/
package main
