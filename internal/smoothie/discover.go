package smoothie

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"smoothieq/internal/config"
	"smoothieq/internal/logging"
)

// ExecutableName is the binary looked up on PATH.
const ExecutableName = "smoothie-rs"

const (
	recipeFileName   = "recipe.ini"
	excludedPresets  = "encoding_presets.ini"
	recipesSubdir    = "recipes"
	relativeInstall  = "Smoothie"
	windowsExeSuffix = ".exe"
)

// ErrExecutableNotFound is returned when no smoothie-rs binary can be located.
var ErrExecutableNotFound = errors.New("smoothie-rs executable not found")

var lookPath = exec.LookPath

// Installation describes a located smoothie-rs setup.
type Installation struct {
	Executable string
	Recipe     string
	Root       string
}

// Discover resolves the installation from configuration, falling back to
// automatic lookup. An explicit recipe in cfg always wins over discovery.
func Discover(cfg *config.Config, logger *slog.Logger) (Installation, error) {
	logger = logging.NewComponentLogger(logger, "smoothie")

	var (
		inst Installation
		err  error
	)
	switch {
	case cfg.Smoothie.Executable != "":
		if err := CheckExecutable(cfg.Smoothie.Executable); err != nil {
			return Installation{}, err
		}
		inst = Installation{
			Executable: cfg.Smoothie.Executable,
			Recipe:     DefaultRecipe(cfg.Smoothie.Executable),
			Root:       installRoot(cfg.Smoothie.Executable),
		}
	case cfg.Smoothie.SearchDir != "":
		inst, err = FindInDir(cfg.Smoothie.SearchDir)
		if err != nil {
			return Installation{}, err
		}
	default:
		inst, err = FindAuto()
		if err != nil {
			return Installation{}, err
		}
	}

	if cfg.Smoothie.Recipe != "" {
		inst.Recipe = cfg.Smoothie.Recipe
	}
	if cfg.Smoothie.SearchDir != "" {
		inst.Root = cfg.Smoothie.SearchDir
	}
	logger.Info("smoothie-rs located",
		logging.String(logging.FieldEventType, "smoothie_located"),
		logging.String("executable", inst.Executable),
		logging.String("recipe", inst.Recipe),
	)
	return inst, nil
}

// FindAuto searches PATH and then ./Smoothie/bin.
func FindAuto() (Installation, error) {
	exe, err := findExecutableAuto()
	if err != nil {
		return Installation{}, err
	}
	return Installation{Executable: exe, Recipe: DefaultRecipe(exe), Root: installRoot(exe)}, nil
}

// FindInDir locates an installation rooted at dir (dir/bin/smoothie-rs).
// dir/recipe.ini is preferred as the default recipe.
func FindInDir(dir string) (Installation, error) {
	exe, ok := firstExecutable(filepath.Join(dir, "bin"))
	if !ok {
		return Installation{}, fmt.Errorf("%w in %s", ErrExecutableNotFound, filepath.Join(dir, "bin"))
	}
	recipe := filepath.Join(dir, recipeFileName)
	if !isFile(recipe) {
		recipe = DefaultRecipe(exe)
	}
	return Installation{Executable: exe, Recipe: recipe, Root: dir}, nil
}

func findExecutableAuto() (string, error) {
	if path, err := lookPath(ExecutableName); err == nil {
		return path, nil
	}
	if exe, ok := firstExecutable(filepath.Join(".", relativeInstall, "bin")); ok {
		return exe, nil
	}
	return "", fmt.Errorf("%w in PATH or ./%s/bin", ErrExecutableNotFound, relativeInstall)
}

func firstExecutable(binDir string) (string, bool) {
	for _, name := range []string{ExecutableName, ExecutableName + windowsExeSuffix} {
		candidate := filepath.Join(binDir, name)
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// CheckExecutable verifies path is a regular file the current user may execute.
func CheckExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutableNotFound, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrExecutableNotFound, path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("smoothie-rs at %s is not executable: %w", path, err)
	}
	return nil
}

// DefaultRecipe picks ./Smoothie/recipe.ini, then recipe.ini two levels above
// the executable, else the bare name recipe.ini.
func DefaultRecipe(executable string) string {
	relative := filepath.Join(".", relativeInstall, recipeFileName)
	if isFile(relative) {
		return relative
	}
	if executable != "" {
		beside := filepath.Join(installRoot(executable), recipeFileName)
		if isFile(beside) {
			return beside
		}
	}
	return recipeFileName
}

// installRoot is the directory above bin/ for an executable path.
func installRoot(executable string) string {
	return filepath.Dir(filepath.Dir(executable))
}

// FindRecipes lists *.ini files in root and root/recipes, excluding
// encoding_presets.ini. The result is sorted and free of duplicates.
func FindRecipes(root string) []string {
	seen := make(map[string]struct{})
	var recipes []string
	for _, dir := range []string{root, filepath.Join(root, recipesSubdir)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.EqualFold(filepath.Ext(name), ".ini") || name == excludedPresets {
				continue
			}
			path := filepath.Join(dir, name)
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			recipes = append(recipes, path)
		}
	}
	sort.Strings(recipes)
	return recipes
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
