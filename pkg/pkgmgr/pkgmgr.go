// Package pkgmgr installs and updates widget packages, which are git
// repositories with an npm dependency step, and inventories what is on disk
// against the community package list.
package pkgmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const logPrefix = "pkgmgr:manager"

// DefaultTimeout bounds a full install (clone plus npm install).
const DefaultTimeout = 2 * time.Minute

// DefaultListURL is the community widget catalogue.
const DefaultListURL = "https://modules.magicmirror.builders/data/modules.json"

// coreModules ship with the display application itself and are listed as
// installable without a repository.
var coreModules = []string{
	"alert", "calendar", "clock", "compliments", "currentweather",
	"helloworld", "newsfeed", "updatenotification", "weatherforecast",
}

// ModuleInfo describes one installable or installed widget package.
type ModuleInfo struct {
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Author     string `json:"author,omitempty"`
	Desc       string `json:"desc,omitempty"`
	Installed  bool   `json:"installed"`
	Core       bool   `json:"core,omitempty"`
	UpdateInfo string `json:"updateInfo,omitempty"`
}

// Manager performs package operations beneath a single widget directory.
type Manager struct {
	ModulesDir string
	ListURL    string
	Timeout    time.Duration

	client *http.Client
}

// NewManager builds a Manager for the given widget directory.
func NewManager(modulesDir string) *Manager {
	return &Manager{
		ModulesDir: modulesDir,
		ListURL:    DefaultListURL,
		Timeout:    DefaultTimeout,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *Manager) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Install clones url beneath the widget directory and runs npm install when
// the package declares dependencies.
func (m *Manager) Install(ctx context.Context, url string) error {
	name := RepoName(url)
	if name == "" {
		return fmt.Errorf("cannot derive module name from %q", url)
	}
	target := filepath.Join(m.ModulesDir, name)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("module %s is already installed", name)
	}

	slog.Info(fmt.Sprintf("%s - installing %s from %s", logPrefix, name, url))
	if _, err := m.runGit(ctx, m.ModulesDir, "clone", url, name); err != nil {
		return err
	}
	return m.npmInstall(ctx, target)
}

// Update pulls the named widget's repository and reruns npm install when a
// pull brought changes.
func (m *Manager) Update(ctx context.Context, name string) (string, error) {
	dir := filepath.Join(m.ModulesDir, name)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("module %s is not installed", name)
	}
	return m.UpdateDir(ctx, dir)
}

// UpdateDir pulls an arbitrary checkout. Used for the display application
// itself, which lives outside the widget directory.
func (m *Manager) UpdateDir(ctx context.Context, dir string) (string, error) {
	slog.Info(fmt.Sprintf("%s - updating %s", logPrefix, dir))
	out, err := m.runGit(ctx, dir, "pull")
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "Already up to date") || strings.Contains(out, "Already up-to-date") {
		return out, nil
	}
	if err := m.npmInstall(ctx, dir); err != nil {
		return out, err
	}
	return out, nil
}

func (m *Manager) npmInstall(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "npm", "install", "--omit=dev")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("npm install in %s: %w: %s", dir, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Installed lists widget packages found on disk, skipping support files and
// the default bundle directory.
func (m *Manager) Installed() ([]string, error) {
	entries, err := os.ReadDir(m.ModulesDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.ModulesDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch e.Name() {
		case "node_modules", "default":
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// IsInstalled reports whether name exists beneath the widget directory.
func (m *Manager) IsInstalled(name string) bool {
	info, err := os.Stat(filepath.Join(m.ModulesDir, name))
	return err == nil && info.IsDir()
}

// Available fetches the community catalogue, marks entries already on disk,
// and prepends the core bundle.
func (m *Manager) Available(ctx context.Context) ([]ModuleInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.ListURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching module list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching module list: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	var listed []ModuleInfo
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, fmt.Errorf("parsing module list: %w", err)
	}

	out := make([]ModuleInfo, 0, len(coreModules)+len(listed))
	for _, name := range coreModules {
		out = append(out, ModuleInfo{Name: name, Installed: true, Core: true})
	}
	for _, info := range listed {
		info.Installed = m.IsInstalled(info.Name)
		out = append(out, info)
	}
	return out, nil
}

// RepoName derives the widget name from a git URL.
func RepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return ""
	}
	return url[idx+1:]
}
