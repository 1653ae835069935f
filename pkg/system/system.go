// Package system shells out to the host for monitor power control, shutdown
// and reboot, and operator-defined command aliases.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/morezero/mirror-remote/pkg/notify"
)

const logPrefix = "system:controller"

// DefaultExecTimeout bounds every spawned command.
const DefaultExecTimeout = 8 * time.Second

// offStates are outputs of the monitor status command that mean the display
// is powered down. Raspberry Pi firmware and CEC tooling disagree on the
// exact phrasing, so all known variants are accepted.
var offStates = map[string]bool{
	"false":           true,
	"TV is off":       true,
	"standby":         true,
	"display_power=0": true,
}

// Commands holds the shell snippets the controller runs. Empty fields fall
// back to the Raspberry Pi defaults.
type Commands struct {
	MonitorOn     string
	MonitorOff    string
	MonitorStatus string
	Shutdown      string
	Reboot        string
	// Aliases maps COMMAND action payload names to shell snippets.
	Aliases map[string]string
}

func (c Commands) withDefaults() Commands {
	if c.MonitorOn == "" {
		c.MonitorOn = "vcgencmd display_power 1"
	}
	if c.MonitorOff == "" {
		c.MonitorOff = "vcgencmd display_power 0"
	}
	if c.MonitorStatus == "" {
		c.MonitorStatus = "vcgencmd display_power"
	}
	if c.Shutdown == "" {
		c.Shutdown = "sudo shutdown -h now"
	}
	if c.Reboot == "" {
		c.Reboot = "sudo shutdown -r now"
	}
	return c
}

// Controller runs host commands. The zero value is not usable; construct
// with NewController.
type Controller struct {
	cmds    Commands
	timeout time.Duration
	run     func(ctx context.Context, script string) (string, error)
}

// NewController builds a Controller with defaults filled in.
func NewController(cmds Commands) *Controller {
	return &Controller{
		cmds:    cmds.withDefaults(),
		timeout: DefaultExecTimeout,
		run:     runShell,
	}
}

func runShell(ctx context.Context, script string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", script).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (c *Controller) exec(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slog.Debug(fmt.Sprintf("%s - running: %s", logPrefix, script))
	out, err := c.run(ctx, script)
	if err != nil {
		return out, fmt.Errorf("command %q: %w", script, err)
	}
	return out, nil
}

// MonitorOn powers the display up and announces presence to widgets.
func (c *Controller) MonitorOn(ctx context.Context, n notify.Notifier) error {
	if _, err := c.exec(ctx, c.cmds.MonitorOn); err != nil {
		return err
	}
	if n != nil {
		_ = n.Notify("USER_PRESENCE", true)
	}
	return nil
}

// MonitorOff powers the display down and announces absence to widgets.
func (c *Controller) MonitorOff(ctx context.Context, n notify.Notifier) error {
	if _, err := c.exec(ctx, c.cmds.MonitorOff); err != nil {
		return err
	}
	if n != nil {
		_ = n.Notify("USER_PRESENCE", false)
	}
	return nil
}

// MonitorStatus reports "on" or "off" from the status command's output.
func (c *Controller) MonitorStatus(ctx context.Context) (string, error) {
	out, err := c.exec(ctx, c.cmds.MonitorStatus)
	if err != nil {
		return "", err
	}
	if offStates[out] {
		return "off", nil
	}
	return "on", nil
}

// MonitorToggle flips the display's power state and returns the new state.
func (c *Controller) MonitorToggle(ctx context.Context, n notify.Notifier) (string, error) {
	status, err := c.MonitorStatus(ctx)
	if err != nil {
		return "", err
	}
	if status == "off" {
		if err := c.MonitorOn(ctx, n); err != nil {
			return "", err
		}
		return "on", nil
	}
	if err := c.MonitorOff(ctx, n); err != nil {
		return "", err
	}
	return "off", nil
}

// Shutdown powers the host down.
func (c *Controller) Shutdown(ctx context.Context) error {
	_, err := c.exec(ctx, c.cmds.Shutdown)
	return err
}

// Reboot restarts the host.
func (c *Controller) Reboot(ctx context.Context) error {
	_, err := c.exec(ctx, c.cmds.Reboot)
	return err
}

// Command runs the alias named by the payload. Unknown aliases are an error
// so arbitrary shell never reaches exec.
func (c *Controller) Command(ctx context.Context, name string) (string, error) {
	script, ok := c.cmds.Aliases[name]
	if !ok {
		return "", fmt.Errorf("unknown command alias %q", name)
	}
	return c.exec(ctx, script)
}
