package service

// Shortcut is a controller action bound to a key combination.
type Shortcut string

const (
	ShortcutReset       Shortcut = "reset"
	ShortcutTheme       Shortcut = "theme"
	ShortcutClosePanel  Shortcut = "close-panel"
	ShortcutFocusSearch Shortcut = "focus-search"
	ShortcutGeolocate   Shortcut = "geolocate"
)

// KeyPress is a keydown reported by the page. Ctrl and Meta are treated alike.
type KeyPress struct {
	Key  string `json:"key" doc:"KeyboardEvent.key value" example:"r"`
	Ctrl bool   `json:"ctrl" doc:"Control key held"`
	Meta bool   `json:"meta" doc:"Meta (Cmd) key held"`
}

// ParseShortcut maps a key press to its shortcut. Letter keys match lowercase
// only, leaving Ctrl+Shift combinations to the browser.
func ParseShortcut(k KeyPress) (Shortcut, bool) {
	if k.Key == "Escape" {
		return ShortcutClosePanel, true
	}
	if !k.Ctrl && !k.Meta {
		return "", false
	}
	switch k.Key {
	case "r":
		return ShortcutReset, true
	case "t":
		return ShortcutTheme, true
	case "f":
		return ShortcutFocusSearch, true
	case "l":
		return ShortcutGeolocate, true
	}
	return "", false
}
