package snapio

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

const ExampleConfigFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Text file with the initial conditions: whitespace-separated columns of
# x y z vx vy vz mass h u, one body per row.
Input = path/to/initial_conditions.txt

# Directory which snapshot shards will be written to. Must exist.
Output = path/to/output/dir

# Number of ranks to decompose over.
Ranks = 4

# Number of iterations to run.
Iterations = 200

# Time step.
Dt = 0.0025

#######################
# Optional Parameters #
#######################

# Tag used in snapshot file names. Default is "snap".
# Tag = sedov

# Write a snapshot every this many iterations. 0 disables output.
# OutputEvery = 1

# Bodies per tree leaf before a cell is subdivided. Default is 32.
# LeafCap = 32

# Depth of the coarse tree shared between ranks. Default is 3.
# BranchLevel = 3

# Adiabatic index of the gas. Default is 5/3.
# Gamma = 1.6667
`

// SimulationConfig is the [Simulation] section of a config file.
type SimulationConfig struct {
	// Required
	Input, Output string
	Ranks         int
	Iterations    int
	Dt            float64

	// Optional
	Tag         string
	OutputEvery int
	LeafCap     int
	BranchLevel int
	Gamma       float64
}

type ConfigWrapper struct {
	Simulation SimulationConfig
}

func DefaultConfigWrapper() *ConfigWrapper {
	con := SimulationConfig{}
	con.Tag = "snap"
	con.OutputEvery = 1
	con.LeafCap = 32
	con.BranchLevel = 3
	con.Gamma = 5.0 / 3.0
	return &ConfigWrapper{con}
}

func (con *SimulationConfig) validate() error {
	switch {
	case con.Input == "":
		return fmt.Errorf("The variable 'Input' was not set.")
	case con.Output == "":
		return fmt.Errorf("The variable 'Output' was not set.")
	case con.Ranks < 1:
		return fmt.Errorf("The variable 'Ranks' must be at least 1.")
	case con.Iterations < 1:
		return fmt.Errorf("The variable 'Iterations' must be at least 1.")
	case con.Dt <= 0:
		return fmt.Errorf("The variable 'Dt' must be positive.")
	case con.LeafCap < 1:
		return fmt.Errorf("The variable 'LeafCap' must be at least 1.")
	case con.BranchLevel < 1:
		return fmt.Errorf("The variable 'BranchLevel' must be at least 1.")
	case con.Gamma <= 1:
		return fmt.Errorf("The variable 'Gamma' must be larger than 1.")
	case con.OutputEvery < 0:
		return fmt.Errorf("The variable 'OutputEvery' must not be negative.")
	}
	return nil
}

// ReadConfig parses and validates a config file. Validation failures are
// configuration errors: the caller should report them once and abort.
func ReadConfig(fname string) (*SimulationConfig, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, fmt.Errorf("Error parsing config file %s: %w", fname, err)
	}
	if err := wrap.Simulation.validate(); err != nil {
		return nil, fmt.Errorf("Error in config file %s: %w", fname, err)
	}
	return &wrap.Simulation, nil
}
