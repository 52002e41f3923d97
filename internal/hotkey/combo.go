package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCombo is returned when a key combination cannot be parsed.
var ErrInvalidCombo = errors.New("invalid key combination")

// Modifier flags, matching the Win32 MOD_* values.
const (
	ModAlt      uint32 = 0x0001
	ModCtrl     uint32 = 0x0002
	ModShift    uint32 = 0x0004
	ModWin      uint32 = 0x0008
	ModNoRepeat uint32 = 0x4000
)

// Combo is a modifier set plus a virtual-key code.
type Combo struct {
	Modifiers uint32
	Key       uint32
}

var modifierNames = map[string]uint32{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"shift":   ModShift,
	"win":     ModWin,
	"super":   ModWin,
}

var namedKeys = map[string]uint32{
	"space":       0x20,
	"enter":       0x0D,
	"return":      0x0D,
	"tab":         0x09,
	"esc":         0x1B,
	"escape":      0x1B,
	"pause":       0x13,
	"pageup":      0x21,
	"pagedown":    0x22,
	"end":         0x23,
	"home":        0x24,
	"left":        0x25,
	"up":          0x26,
	"right":       0x27,
	"down":        0x28,
	"printscreen": 0x2C,
	"insert":      0x2D,
	"delete":      0x2E,
}

// ParseCombo parses strings such as "Ctrl+Alt+S" or "Shift+F9". Names are
// case-insensitive and exactly one non-modifier key is required.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(s, "+")

	for i, raw := range parts {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			return Combo{}, fmt.Errorf("%w: %q", ErrInvalidCombo, s)
		}

		if mod, ok := modifierNames[name]; ok && i < len(parts)-1 {
			c.Modifiers |= mod
			continue
		}

		if i != len(parts)-1 {
			return Combo{}, fmt.Errorf("%w: %q: unknown modifier %q", ErrInvalidCombo, s, raw)
		}

		key, ok := keyCode(name)
		if !ok {
			return Combo{}, fmt.Errorf("%w: %q: unknown key %q", ErrInvalidCombo, s, raw)
		}
		c.Key = key
	}

	return c, nil
}

func keyCode(name string) (uint32, bool) {
	if code, ok := namedKeys[name]; ok {
		return code, true
	}

	if len(name) == 1 {
		ch := name[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint32(ch - 'a' + 'A'), true
		case ch >= '0' && ch <= '9':
			return uint32(ch), true
		}
	}

	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 24 && name == fmt.Sprintf("f%d", n) {
		return 0x70 + uint32(n-1), true
	}

	return 0, false
}

// String formats c in the canonical "Ctrl+Alt+Shift+Win+Key" form.
func (c Combo) String() string {
	var parts []string
	if c.Modifiers&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if c.Modifiers&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if c.Modifiers&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if c.Modifiers&ModWin != 0 {
		parts = append(parts, "Win")
	}
	return strings.Join(append(parts, keyName(c.Key)), "+")
}

func keyName(code uint32) string {
	switch {
	case code >= 'A' && code <= 'Z', code >= '0' && code <= '9':
		return string(rune(code))
	case code >= 0x70 && code <= 0x87:
		return fmt.Sprintf("F%d", code-0x70+1)
	}

	best := ""
	for name, c := range namedKeys {
		if c == code && (best == "" || name < best) {
			best = name
		}
	}
	if best != "" {
		return strings.ToUpper(best[:1]) + best[1:]
	}
	return fmt.Sprintf("0x%02X", code)
}
