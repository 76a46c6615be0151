package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external program smoothieq runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup result for one Requirement. Command holds the resolved
// absolute path when the program was found.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Smoothie lists the programs needed to render with the given smoothie-rs
// executable.
func Smoothie(executable string) []Requirement {
	return []Requirement{
		{Name: "smoothie-rs", Command: executable, Description: "Renders queued files"},
		{Name: "FFmpeg", Command: "ffmpeg", Description: "Encodes smoothie-rs output"},
	}
}

// CheckBinaries resolves each requirement on PATH, or as a path when the
// command contains a separator.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
