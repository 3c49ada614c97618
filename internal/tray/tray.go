// Package tray provides a system tray icon for the face detection service.
package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onOpen     func()
	onResetAll func()
	onQuit     func()
	sessions   func() int
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuSessions *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnOpen sets the callback for the "Open FaceLab" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnResetAll sets the callback for the "Reset all sessions" menu item.
func (t *Tray) OnResetAll(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResetAll = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// SessionCounter sets the function polled for the live session count.
func (t *Tray) SessionCounter(fn func() int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("FaceLab")
	systray.SetTooltip("FaceLab face detection service")

	t.mu.Lock()
	t.menuSessions = systray.AddMenuItem(sessionLabel(0), "Active workflow sessions")
	t.menuSessions.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open FaceLab", "Open the block editor in a browser")
	menuReset := systray.AddMenuItem("Reset all sessions", "Release every session's images and engine")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit FaceLab")

	go func() {
		for {
			select {
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuReset.ClickedCh:
				t.handleResetAll()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// Watch refreshes the session count every interval until ctx is cancelled.
func (t *Tray) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.sessions == nil || t.menuSessions == nil {
		return
	}
	t.menuSessions.SetTitle(sessionLabel(t.sessions()))
}

func sessionLabel(n int) string {
	if n == 1 {
		return "1 session"
	}
	return fmt.Sprintf("%d sessions", n)
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleResetAll handles the reset menu item click.
func (t *Tray) handleResetAll() {
	t.mu.RLock()
	callback := t.onResetAll
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	t.refresh()
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
