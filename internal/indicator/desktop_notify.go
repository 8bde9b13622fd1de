package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// desktopSink talks to org.freedesktop.Notifications through busctl. Each
// notification replaces the previous one.
type desktopSink struct {
	appName string

	mu sync.Mutex
	id uint32
}

func newDesktopSink(appName string) *desktopSink {
	if appName = strings.TrimSpace(appName); appName == "" {
		appName = "soundboard"
	}
	return &desktopSink{appName: appName}
}

func (d *desktopSink) show(ctx context.Context, _ level, timeoutMS int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout)
	out, err := busctl(ctx, "Notify", "susssasa{sv}i",
		d.appName, strconv.FormatUint(uint64(d.id), 10), "", text, "", "0", "0", strconv.Itoa(timeoutMS))
	if err != nil {
		return err
	}
	id, err := parseNotificationID(out)
	if err != nil {
		return err
	}
	d.id = id
	return nil
}

func (d *desktopSink) dismiss(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.id == 0 {
		return nil
	}
	id := d.id
	d.id = 0
	_, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

func busctl(ctx context.Context, method, signature string, args ...string) (string, error) {
	argv := append([]string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method, signature,
	}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w (%s)", method, err, trimmed)
	}
	return trimmed, nil
}

// parseNotificationID reads busctl's "u <id>" reply.
func parseNotificationID(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("unexpected Notify reply %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", value, err)
	}
	return uint32(id), nil
}
