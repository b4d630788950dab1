package tmux

// MapKey converts lower-case key aliases to tmux key names. tmux expects
// capitalized names like "Left" and "BSpace"; anything it does not
// recognize here is passed through unchanged.
func MapKey(key string) string {
	switch key {
	case "up":
		return "Up"
	case "down":
		return "Down"
	case "left":
		return "Left"
	case "right":
		return "Right"
	case "home":
		return "Home"
	case "end":
		return "End"
	case "backspace":
		return "BSpace"
	case "delete":
		return "DC"
	case "pgup":
		return "PageUp"
	case "pgdown":
		return "PageDown"
	case "tab":
		return "Tab"
	case "enter":
		return "Enter"
	case "esc", "escape":
		return "Escape"
	case "space":
		return "Space"
	default:
		return key
	}
}
