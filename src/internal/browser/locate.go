// FILE: src/internal/browser/locate.go
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// wellKnownPaths returns the ordered probe list of browser executables for
// the current operating system. First existing path wins.
func wellKnownPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		paths := []string{
			filepath.Join(os.Getenv("ProgramFiles"), `Google\Chrome\Application\chrome.exe`),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), `Google\Chrome\Application\chrome.exe`),
		}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			paths = append(paths, filepath.Join(local, `Google\Chrome\Application\chrome.exe`))
		}
		return paths
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
}

// processNames returns the executable names used for best-effort cleanup of
// stale browser instances before a fresh launch.
func processNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"Google Chrome", "Chromium"}
	case "windows":
		return []string{"chrome.exe"}
	default:
		return []string{"chrome", "chromium", "chromium-browser"}
	}
}

// locateExecutable probes the given paths (or the platform defaults when
// empty) and returns the first that exists. No browser installed is a hard
// startup error.
func locateExecutable(overrides []string) (string, error) {
	paths := overrides
	if len(paths) == 0 {
		paths = wellKnownPaths()
	}
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no browser executable found; probed %d known locations for %s", len(paths), runtime.GOOS)
}
