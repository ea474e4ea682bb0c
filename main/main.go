/*Command sphpart runs a Sedov-style SPH demo on top of the distributed
decomposition: it reads text initial conditions, decomposes them over the
configured number of ranks, and sequences the per-iteration protocol the
way a production driver would.

    $ sphpart -Config sedov.config

An example config file is printed by -ExampleConfig.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/phil-mansfield/sphpart/comm"
	"github.com/phil-mansfield/sphpart/snapio"
	"github.com/phil-mansfield/sphpart/sph"

	"github.com/google/uuid"
)

func main() {
	var (
		configPath, logPath, pprofPath string
		exampleConfig                  bool
	)

	flag.StringVar(&configPath, "Config", "", "Location of the config file.")
	flag.StringVar(&logPath, "Log", "",
		"Location to write log statements to. Default is stderr.")
	flag.StringVar(&pprofPath, "PProf", "",
		"Location to write profile to. Default is no profiling.")
	flag.BoolVar(&exampleConfig, "ExampleConfig", false,
		"Print an example config file and exit.")
	flag.Parse()

	if exampleConfig {
		fmt.Print(snapio.ExampleConfigFile, "\n")
		return
	}
	if configPath == "" {
		log.Fatalf("No config file given. Run with -Config <file>.")
	}

	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			log.Fatalf("Could not create log file %s: %v", logPath, err)
		}
		defer f.Close()
		log.SetOutput(f)
	}
	if pprofPath != "" {
		f, err := os.Create(pprofPath)
		if err != nil {
			log.Fatalf("Could not create profile file %s: %v", pprofPath, err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Config errors are reported exactly once: the file is parsed before
	// any rank exists.
	cfg, err := snapio.ReadConfig(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runID := snapio.NewRunID()
	err = comm.Run(cfg.Ranks, func(c *comm.Comm) error {
		return runRank(c, cfg, runID)
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func runRank(c *comm.Comm, cfg *snapio.SimulationConfig, runID uuid.UUID) error {
	bodies, err := snapio.ReadText(cfg.Input, c.Rank(), c.Size())
	if err != nil {
		return err
	}

	sys := sph.NewSystem(c, sph.Config{
		LeafCap: cfg.LeafCap, BranchLevel: cfg.BranchLevel,
	})
	if err := sys.Load(bodies); err != nil {
		return err
	}

	p := Params{Dt: cfg.Dt, Gamma: cfg.Gamma, Alpha: 1, Beta: 2}

	if err := writeShard(c, sys, cfg, runID, 0); err != nil {
		return err
	}

	for iter := 1; iter <= cfg.Iterations; iter++ {
		if c.Rank() == 0 {
			log.Printf("#### Iteration %d", iter)
		}

		// Rebalance ownership, rebuild the tree and refresh ghosts for the
		// positions the last drift produced.
		if err := sys.UpdateIteration(); err != nil {
			return err
		}

		if err := sys.ApplyInSmoothingLength(Density(p)); err != nil {
			return err
		}
		if err := sys.ApplyAll(Pressure(p)); err != nil {
			return err
		}
		if err := sys.ApplyAll(SoundSpeed(p)); err != nil {
			return err
		}

		// Ghost copies carry stale density and pressure; refresh them
		// before the pairwise kernels read neighbor state.
		if err := sys.UpdateNeighbors(); err != nil {
			return err
		}

		if err := sys.ApplyInSmoothingLength(Acceleration(p)); err != nil {
			return err
		}
		if err := sys.ApplyInSmoothingLength(EnergyRate(p)); err != nil {
			return err
		}

		if err := sys.ApplyAll(LeapfrogKick(p)); err != nil {
			return err
		}
		if err := sys.ApplyAll(LeapfrogDrift(p)); err != nil {
			return err
		}
		if err := sys.ApplyAll(LeapfrogKick(p)); err != nil {
			return err
		}

		if cfg.OutputEvery > 0 && iter%cfg.OutputEvery == 0 {
			if err := writeShard(c, sys, cfg, runID, iter); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeShard(
	c *comm.Comm, sys *sph.System, cfg *snapio.SimulationConfig,
	runID uuid.UUID, iter int,
) error {
	hdr := snapio.Header{
		RunID:  runID,
		Iter:   int64(iter),
		Rank:   int64(c.Rank()),
		Ranks:  int64(c.Size()),
		HMax:   sys.MaxSmoothingLength(),
		Domain: sys.Domain(),
	}
	name := snapio.ShardName(cfg.Output, cfg.Tag, iter, c.Rank())
	return snapio.WriteBodies(name, hdr, sys.Bodies())
}
