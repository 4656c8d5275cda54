package proctor

import (
	"strings"

	"github.com/bitlabs/talentstream-proctor/internal/model"
)

// SignalType is the browser event a Signal was raised from.
type SignalType string

const (
	SignalFullscreenChange SignalType = "fullscreenchange"
	SignalVisibilityChange SignalType = "visibilitychange"
	SignalBlur             SignalType = "blur"
	SignalKeyDown          SignalType = "keydown"
	SignalOnline           SignalType = "online"
	SignalOffline          SignalType = "offline"
)

// Signal is a raw browser observation forwarded by the client.
type Signal struct {
	Type SignalType `json:"type" binding:"required,oneof=fullscreenchange visibilitychange blur keydown online offline"`

	// Fullscreen is true when document.fullscreenElement is set.
	Fullscreen bool `json:"fullscreen"`
	// Hidden mirrors document.hidden.
	Hidden bool `json:"hidden"`

	Key  string `json:"key,omitempty"`
	Alt  bool   `json:"alt,omitempty"`
	Ctrl bool   `json:"ctrl,omitempty"`
	Meta bool   `json:"meta,omitempty"`
}

// IsConnectivity reports whether the signal concerns network state rather
// than integrity.
func (s Signal) IsConnectivity() bool {
	return s.Type == SignalOnline || s.Type == SignalOffline
}

// Classify maps a signal to the violation it represents, if any.
func Classify(s Signal) (model.ViolationKind, bool) {
	switch s.Type {
	case SignalFullscreenChange:
		if !s.Fullscreen {
			return model.ViolationFullscreenExit, true
		}
	case SignalVisibilityChange:
		if s.Hidden {
			return model.ViolationTabHidden, true
		}
	case SignalBlur:
		return model.ViolationWindowBlur, true
	case SignalKeyDown:
		if prohibitedKey(s) {
			return model.ViolationProhibitedKey, true
		}
	}
	return "", false
}

// prohibitedKey covers Meta, Alt on its own, Ctrl+Tab and Alt+Tab.
func prohibitedKey(s Signal) bool {
	key := strings.ToLower(s.Key)
	switch {
	case s.Meta || key == "meta" || key == "os":
		return true
	case key == "alt":
		return true
	case key == "tab" && (s.Ctrl || s.Alt):
		return true
	}
	return false
}
