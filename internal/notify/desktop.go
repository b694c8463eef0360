package notify

import (
	"context"
	"fmt"
	"os/exec"

	"mgmonitor/internal/config"
)

// DesktopNotifier shells out to a local notification command, notify-send by
// default. Only useful when the monitor runs on the user's own machine.
type DesktopNotifier struct {
	command string
}

func NewDesktopNotifier(cfg config.DesktopConfig) *DesktopNotifier {
	command := cfg.Command
	if command == "" {
		command = "notify-send"
	}
	return &DesktopNotifier{command: command}
}

func (n *DesktopNotifier) Name() string {
	return "desktop"
}

func (n *DesktopNotifier) Send(ctx context.Context, event DealEvent) error {
	cmd := exec.CommandContext(ctx, n.command, event.Subject(), event.Body())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("desktop notify: %w: %s", err, out)
	}
	return nil
}
