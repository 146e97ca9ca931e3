// Package hotkey watches for a global key combination such as "Ctrl+Alt+T".
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

// Windows virtual-key codes, as reported in gohook's Rawcode.
var rawcodes = map[string][]uint16{
	// Modifier keys: both left and right variants
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"esc":       {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

var aliases = map[string]string{
	"control": "ctrl",
	"win":     "cmd",
	"super":   "cmd",
	"return":  "enter",
	"escape":  "esc",
	"del":     "delete",
	"ins":     "insert",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		rawcodes[string(c)] = []uint16{uint16(c - 'a' + 65)}
	}
	for d := '0'; d <= '9'; d++ {
		rawcodes[string(d)] = []uint16{uint16(d - '0' + 48)}
	}
	for n := 1; n <= 24; n++ {
		rawcodes[fmt.Sprintf("f%d", n)] = []uint16{uint16(111 + n)} // VK_F1 = 112
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if canonical, ok := aliases[part]; ok {
			part = canonical
		}
		keys = append(keys, part)
	}
	return keys
}

// keyNameToRawcodes returns the rawcodes for a key name, or nil when unknown.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if canonical, ok := aliases[keyName]; ok {
		keyName = canonical
	}
	return rawcodes[keyName]
}

// matcher tracks which keys of a combination are held down.
type matcher struct {
	mu      sync.Mutex
	keys    [][]uint16
	pressed []bool
}

func newMatcher(combo string) (*matcher, error) {
	names := parseHotkey(combo)
	if len(names) == 0 {
		return nil, errors.New("empty hotkey")
	}
	m := &matcher{}
	for _, name := range names {
		codes := keyNameToRawcodes(name)
		if codes == nil {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", name, combo)
		}
		m.keys = append(m.keys, codes)
	}
	m.pressed = make([]bool, len(m.keys))
	return m, nil
}

// keyDown records a press and reports whether the full combination is now held.
// A completed combination resets, so holding the keys fires once.
func (m *matcher) keyDown(code uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, codes := range m.keys {
		for _, c := range codes {
			if c == code {
				m.pressed[i] = true
			}
		}
	}
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	clear(m.pressed)
	return true
}

func (m *matcher) keyUp(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, codes := range m.keys {
		for _, c := range codes {
			if c == code {
				m.pressed[i] = false
			}
		}
	}
}

// Listen registers combo and calls callback each time it is pressed, until ctx ends.
// It returns an error right away if combo cannot be mapped.
func Listen(ctx context.Context, combo string, callback func()) error {
	m, err := newMatcher(combo)
	if err != nil {
		return err
	}
	zap.S().Infof("hotkey: listening for %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorf("hotkey: listener panicked: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			zap.S().Errorf("hotkey: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					zap.S().Infof("hotkey: event channel closed")
					return
				}
				switch ev.Kind {
				case gohook.KeyDown:
					if m.keyDown(ev.Rawcode) {
						zap.S().Infof("hotkey: %s activated", combo)
						if callback != nil {
							callback()
						}
					}
				case gohook.KeyUp:
					m.keyUp(ev.Rawcode)
				}
			}
		}
	}()
	return nil
}
