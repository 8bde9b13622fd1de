package hypr

import (
	"context"
	"strconv"
)

const defaultNotifyColor = "rgb(89b4fa)"

// Dispatch runs a hyprctl dispatcher without printing its reply.
func Dispatch(ctx context.Context, dispatcher string, args ...string) error {
	return runHyprctl(ctx, append([]string{"--quiet", "dispatch", dispatcher}, args...)...)
}

// Notify shows a compositor notification. An empty color uses the accent blue.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if color == "" {
		color = defaultNotifyColor
	}
	return Dispatch(ctx, "notify", strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, text)
}

// DismissNotify clears every compositor notification.
func DismissNotify(ctx context.Context) error {
	return Dispatch(ctx, "dismissnotify")
}
