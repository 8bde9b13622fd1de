// Package indicator surfaces warnings and short notices to the desktop.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/soundboard/internal/config"
	"github.com/rbright/soundboard/internal/hypr"
)

type level int

const (
	levelNotice level = iota
	levelWarn
)

const (
	noticeTimeoutMS      = 1500
	defaultWarnTimeoutMS = 1200
	dispatchTimeout      = 400 * time.Millisecond
	cueTimeout           = 4 * time.Second
)

// sink is a notification surface.
type sink interface {
	show(ctx context.Context, lvl level, timeoutMS int, text string) error
	dismiss(ctx context.Context) error
}

// Notifier shows notices and warnings on the configured surface and plays
// the error cue on warnings.
type Notifier struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger
	texts  Texts
	sink   sink

	cueMu sync.Mutex
	cue   func(context.Context, config.IndicatorConfig) error
}

// New builds a Notifier for cfg.Backend ("hypr" or "desktop").
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:    cfg,
		logger: logger,
		texts:  indicatorMessagesFromEnv().public(),
		cue:    emitErrorCue,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		n.sink = newDesktopSink(cfg.DesktopAppName)
	} else {
		n.sink = hyprSink{}
	}
	return n
}

// Messages exposes the localized notice texts.
func (n *Notifier) Messages() Texts {
	return n.texts
}

// Warn shows text, or the generic warning when text is empty, and plays the
// error cue. The cue plays even when notifications are disabled.
func (n *Notifier) Warn(ctx context.Context, text string) {
	n.playCue()
	if !n.cfg.Enable {
		return
	}
	if text == "" {
		text = n.texts.Warning
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultWarnTimeoutMS
	}
	n.dispatch(ctx, func(ctx context.Context) error {
		return n.sink.show(ctx, levelWarn, timeout, text)
	})
}

// Notice shows a short informational message. Blank text is ignored.
func (n *Notifier) Notice(ctx context.Context, text string) {
	if !n.cfg.Enable || strings.TrimSpace(text) == "" {
		return
	}
	n.dispatch(ctx, func(ctx context.Context) error {
		return n.sink.show(ctx, levelNotice, noticeTimeoutMS, text)
	})
}

// Hide dismisses whatever the notifier last showed.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.dispatch(ctx, n.sink.dismiss)
}

func (n *Notifier) dispatch(ctx context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && n.logger != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue runs the cue in the background. Cues never overlap.
func (n *Notifier) playCue() {
	if !n.cfg.SoundEnable || n.cue == nil {
		return
	}
	go func() {
		n.cueMu.Lock()
		defer n.cueMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		if err := n.cue(ctx, n.cfg); err != nil && n.logger != nil {
			n.logger.Debug("indicator error cue failed", "error", err.Error())
		}
	}()
}

type hyprSink struct{}

func (hyprSink) show(ctx context.Context, lvl level, timeoutMS int, text string) error {
	if lvl == levelWarn {
		return hypr.Notify(ctx, 3, timeoutMS, "rgb(f38ba8)", text)
	}
	return hypr.Notify(ctx, 1, timeoutMS, "rgb(89b4fa)", text)
}

func (hyprSink) dismiss(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}
