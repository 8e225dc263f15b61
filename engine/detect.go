package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
)

// DefaultEngine is the engine family Detect looks for when none is named.
const DefaultEngine = "stockfish"

var engineFamilies = map[string][]string{
	"stockfish": {"stockfish", "stockfish.exe", "stockfish-windows-x86-64-avx2.exe"},
	"leela":     {"lc0", "lc0.exe", "leela", "leela.exe"},
	"komodo":    {"komodo", "komodo.exe"},
	"dragon":    {"dragon", "dragon.exe"},
}

// DetectConfig controls where Detect looks for an engine binary.
type DetectConfig struct {
	// Engine is the engine family, "stockfish" by default. Unknown
	// families are searched for by their literal name.
	Engine string

	// EnginesDir is checked first. It is typically the application's
	// bundled engines/<family>/bin directory.
	EnginesDir string

	// SearchPaths are extra directories checked after the platform paths.
	SearchPaths []string

	// GOOS overrides runtime.GOOS when choosing platform paths.
	GOOS string

	// HomeDir overrides the user's home directory for "~" expansion.
	HomeDir string
}

func (c DetectConfig) goos() string {
	if c.GOOS != "" {
		return c.GOOS
	}
	return runtime.GOOS
}

func (c DetectConfig) home() string {
	if c.HomeDir != "" {
		return c.HomeDir
	}
	h, _ := os.UserHomeDir()
	return h
}

func (c DetectConfig) engine() string {
	if c.Engine != "" {
		return c.Engine
	}
	return DefaultEngine
}

// ExecutableNames returns the file names tried for an engine family.
func ExecutableNames(family string) []string {
	if names, ok := engineFamilies[family]; ok {
		return slices.Clone(names)
	}
	return []string{family}
}

// Families returns the known engine families in sorted order.
func Families() []string {
	out := make([]string, 0, len(engineFamilies))
	for f := range engineFamilies {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func platformPaths(goos, home string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\Stockfish`,
			`C:\Program Files (x86)\Stockfish`,
			`C:\stockfish`,
			filepath.Join(home, "AppData", "Local", "Stockfish"),
		}
	case "darwin":
		return []string{
			"/usr/local/bin",
			"/opt/homebrew/bin",
			"/usr/bin",
			filepath.Join(home, "Applications", "Stockfish"),
		}
	default:
		return []string{
			"/usr/bin",
			"/usr/local/bin",
			"/opt/stockfish/bin",
			filepath.Join(home, ".local", "bin"),
		}
	}
}

// CandidateDirs returns the directories Detect inspects, in order, apart
// from PATH which is consulted between EnginesDir and the platform paths.
func CandidateDirs(cfg DetectConfig) []string {
	var dirs []string
	if cfg.EnginesDir != "" {
		dirs = append(dirs, cfg.EnginesDir)
	}
	dirs = append(dirs, platformPaths(cfg.goos(), cfg.home())...)
	dirs = append(dirs, cfg.SearchPaths...)
	return dirs
}

// Detect returns the path of the first usable engine executable. It checks
// EnginesDir, then PATH, then the platform's usual install locations and
// finally SearchPaths.
func Detect(cfg DetectConfig) (string, error) {
	names := ExecutableNames(cfg.engine())

	if cfg.EnginesDir != "" {
		if p, ok := findIn(cfg.EnginesDir, names); ok {
			return p, nil
		}
	}
	for _, name := range names {
		if p, err := exec.LookPath(name); err == nil && isExecutable(p) {
			return p, nil
		}
	}
	dirs := append(platformPaths(cfg.goos(), cfg.home()), cfg.SearchPaths...)
	for _, dir := range dirs {
		if p, ok := findIn(dir, names); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEngineNotFound, cfg.engine())
}

// ListAvailable returns one path per known engine family that Detect can
// find.
func ListAvailable(cfg DetectConfig) []string {
	var found []string
	for _, family := range Families() {
		c := cfg
		c.Engine = family
		if p, err := Detect(c); err == nil && !slices.Contains(found, p) {
			found = append(found, p)
		}
	}
	return found
}

// InstallHint returns platform specific installation instructions for
// Stockfish.
func InstallHint(goos string) string {
	switch goos {
	case "linux":
		return "Install Stockfish with your package manager:\n" +
			"  Ubuntu/Debian: sudo apt install stockfish\n" +
			"  Fedora: sudo dnf install stockfish\n" +
			"  Arch: sudo pacman -S stockfish\n" +
			"Or download from: https://stockfishchess.org/download/"
	case "darwin":
		return "Install Stockfish with Homebrew:\n" +
			"  brew install stockfish\n" +
			"Or download from: https://stockfishchess.org/download/"
	default:
		return "Download Stockfish from: https://stockfishchess.org/download/"
	}
}

func findIn(dir string, names []string) (string, bool) {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, true
		}
	}
	return "", false
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}
