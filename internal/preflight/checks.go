package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"smoothieq/internal/deps"
	"smoothieq/internal/smoothie"
	"smoothieq/internal/supervisor"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRecipe verifies that the selected recipe is a readable file.
func CheckRecipe(path string) Result {
	const name = "Recipe"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "no recipe selected"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckOutputDir verifies the configured output folder. An empty value means
// renders land next to each input and always passes.
func CheckOutputDir(path string) Result {
	const name = "Output folder"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "next to each input"}
	}
	resolved, err := supervisor.ResolveOutputDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return CheckDirectoryAccess(name, resolved)
}

// CheckSystemDeps evaluates the programs the located installation needs.
func CheckSystemDeps(inst smoothie.Installation) []deps.Status {
	executable := inst.Executable
	if executable == "" {
		executable = smoothie.ExecutableName
	}
	return deps.CheckBinaries(deps.Smoothie(executable))
}
