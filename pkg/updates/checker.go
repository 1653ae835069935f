// Package updates tracks whether the display application or any installed
// widget has newer code available upstream.
package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "updates:checker"

// Status is one refresh's findings.
type Status struct {
	// Mirror is true when the display application itself has a newer
	// release than the installed version.
	Mirror bool `json:"mirror"`
	// Modules maps widget names to how many commits behind upstream they
	// are. Only widgets with pending commits appear.
	Modules map[string]int `json:"modules"`
	// CheckedAt is when the last refresh completed.
	CheckedAt time.Time `json:"checkedAt"`
}

// Checker inspects git state under the display and widget directories. A
// Checker is safe for concurrent use; Refresh runs serially against the
// current snapshot readers.
type Checker struct {
	MirrorDir  string
	ModulesDir string
	Timeout    time.Duration

	mu     sync.RWMutex
	status Status
}

// NewChecker builds a Checker rooted at the display installation.
func NewChecker(mirrorDir, modulesDir string) *Checker {
	return &Checker{
		MirrorDir:  mirrorDir,
		ModulesDir: modulesDir,
		Timeout:    30 * time.Second,
		status:     Status{Modules: map[string]int{}},
	}
}

// Status returns the last refresh's findings.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	modules := make(map[string]int, len(c.status.Modules))
	for k, v := range c.status.Modules {
		modules[k] = v
	}
	out := c.status
	out.Modules = modules
	return out
}

// Refresh re-inspects the display core and every installed widget. Failures
// for individual widgets are logged and skipped so one broken checkout does
// not hide the rest.
func (c *Checker) Refresh(ctx context.Context) Status {
	next := Status{Modules: map[string]int{}, CheckedAt: time.Now()}

	mirror, err := c.mirrorBehind(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - core check failed: %v", logPrefix, err))
	}
	next.Mirror = mirror

	entries, err := os.ReadDir(c.ModulesDir)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - cannot read %s: %v", logPrefix, c.ModulesDir, err))
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "node_modules" || e.Name() == "default" {
			continue
		}
		behind, err := c.commitsBehind(ctx, filepath.Join(c.ModulesDir, e.Name()))
		if err != nil {
			slog.Debug(fmt.Sprintf("%s - skipping %s: %v", logPrefix, e.Name(), err))
			continue
		}
		if behind > 0 {
			next.Modules[e.Name()] = behind
		}
	}

	c.mu.Lock()
	c.status = next
	c.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - refresh complete, core update: %t, modules behind: %d", logPrefix, next.Mirror, len(next.Modules)))
	return next
}

func (c *Checker) git(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s in %s: %w", strings.Join(args, " "), dir, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// commitsBehind fetches and counts upstream commits not yet in the checkout.
func (c *Checker) commitsBehind(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return 0, fmt.Errorf("not a git checkout")
	}
	if _, err := c.git(ctx, dir, "fetch", "--quiet"); err != nil {
		return 0, err
	}
	out, err := c.git(ctx, dir, "rev-list", "--count", "HEAD..@{upstream}")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(out)
}

// mirrorBehind compares the installed display version against the highest
// upstream release tag.
func (c *Checker) mirrorBehind(ctx context.Context) (bool, error) {
	installed, err := installedVersion(c.MirrorDir)
	if err != nil {
		return false, err
	}
	out, err := c.git(ctx, c.MirrorDir, "ls-remote", "--tags", "origin")
	if err != nil {
		return false, err
	}
	latest := highestTag(out)
	if latest == nil {
		return false, fmt.Errorf("no release tags upstream")
	}
	return latest.GreaterThan(installed), nil
}

func installedVersion(mirrorDir string) (*masterminds.Version, error) {
	raw, err := os.ReadFile(filepath.Join(mirrorDir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	return masterminds.NewVersion(pkg.Version)
}

// highestTag picks the newest semver tag from ls-remote output. Annotated
// tag dereference lines and non-semver tags are skipped.
func highestTag(lsRemote string) *masterminds.Version {
	var best *masterminds.Version
	for _, line := range strings.Split(lsRemote, "\n") {
		idx := strings.Index(line, "refs/tags/")
		if idx < 0 {
			continue
		}
		ref := strings.TrimSuffix(line[idx+len("refs/tags/"):], "^{}")
		v, err := masterminds.NewVersion(strings.TrimPrefix(ref, "v"))
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}
