package preflight

import (
	"smoothieq/internal/config"
	"smoothieq/internal/smoothie"
)

// Result reports the outcome of a single preflight check. Optional checks
// never block processing.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for the given config and located
// installation.
func RunAll(cfg *config.Config, inst smoothie.Installation) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckRecipe(inst.Recipe),
		CheckOutputDir(cfg.Queue.OutputDir),
	}
	for _, status := range CheckSystemDeps(inst) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed {
			out = append(out, result)
		}
	}
	return out
}
