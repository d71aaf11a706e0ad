/*
Command lcurve prints L-curves from an occam results database.

	Usage: lcurve [options] <results.db> [run-id | last]
	  -t, --trial string   show only this trial
	  -f, --fault string   fault file, for seismic moment of the selected slip
	      --mu float       shear modulus, Pa (default 4e+10)
	  -v, --version        display version and copyright

With only a database, lcurve lists the runs it holds, oldest first.  With a
run id, or "last" for the most recent run, it prints for each trial the
misfit and roughness at each alpha, with logarithms as plotted on an
L-curve, and marks the corner.  Gaps, alphas at which the inversion
failed, are listed with their error.

If the run selected a solution, its trial, alpha and non-linear parameter
values follow.  Given the fault file the inversion was run with, lcurve
also prints the seismic moment and moment magnitude of the selected slip
at each epoch, for a uniform shear modulus.
*/
package main
