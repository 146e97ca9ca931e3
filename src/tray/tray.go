// Package tray owns the notification-area icon and its menu.
package tray

import (
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

// Config holds the tray labels and menu callbacks.
type Config struct {
	Title   string
	Tooltip string
	// BusyTooltip is shown while an analysis is running.
	BusyTooltip  string
	GlossaryPath string
	OnPaste      func()
	OnExit       func()
}

type Tray struct {
	cfg Config

	mu    sync.Mutex
	ready bool
	busy  bool
}

func New(cfg Config) *Tray {
	if cfg.Title == "" {
		cfg.Title = "CAD-Lingo Bridge"
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = cfg.Title
	}
	if cfg.BusyTooltip == "" {
		cfg.BusyTooltip = cfg.Title + ": analyzing..."
	}
	return &Tray{cfg: cfg}
}

// Run blocks until Quit is called or the user picks "Quit".
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetBusy switches the tooltip between the idle and busy text.
func (t *Tray) SetBusy(b bool) {
	t.mu.Lock()
	t.busy = b
	ready := t.ready
	t.mu.Unlock()
	if ready {
		systray.SetTooltip(t.tooltip(b))
	}
}

func (t *Tray) tooltip(busy bool) string {
	if busy {
		return t.cfg.BusyTooltip
	}
	return t.cfg.Tooltip
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle(t.cfg.Title)

	t.mu.Lock()
	t.ready = true
	busy := t.busy
	t.mu.Unlock()
	systray.SetTooltip(t.tooltip(busy))

	mPaste := systray.AddMenuItem("Paste & translate", "Translate the screenshot on the clipboard")
	mGlossary := systray.AddMenuItem("Open glossary file", "Edit the glossary in the default editor")
	if t.cfg.GlossaryPath == "" {
		mGlossary.Disable()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit CAD-Lingo Bridge")

	go func() {
		for {
			select {
			case <-mPaste.ClickedCh:
				if t.cfg.OnPaste != nil {
					t.cfg.OnPaste()
				}
			case <-mGlossary.ClickedCh:
				if err := openFile(t.cfg.GlossaryPath); err != nil {
					zap.S().Warnf("tray: failed to open %s: %v", t.cfg.GlossaryPath, err)
				}
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	zap.S().Infof("tray: exiting")
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func openFile(path string) error {
	name, args := openCommand(runtime.GOOS, path)
	return exec.Command(name, args...).Start()
}

// openCommand returns the command that opens path with the desktop's default application.
func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}
