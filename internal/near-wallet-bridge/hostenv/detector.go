// Package hostenv classifies the host the bridge is running in.
//
// The host is modelled as a bag of named globals, the way a web page sees
// window.* objects. Detection only inspects presence and never fails.
package hostenv

// Environment selects which request dialect the wallet provider speaks.
type Environment int

const (
	// StandaloneExtension is the default: a browser with the wallet extension
	// (or no wallet at all).
	StandaloneExtension Environment = iota
	// EmbeddedMessagingHost is a page running inside a messaging app's
	// embedded web-app container.
	EmbeddedMessagingHost
)

const (
	// ExtensionGlobal is where the wallet extension injects its provider.
	ExtensionGlobal = "hotExtension"
	// EmbeddedHostGlobal marks the embedded messaging host.
	EmbeddedHostGlobal = "Telegram.WebApp"
)

func (e Environment) String() string {
	switch e {
	case EmbeddedMessagingHost:
		return "embedded-messaging-host"
	default:
		return "standalone-extension"
	}
}

// Host exposes the ambient globals of the running context.
type Host interface {
	Global(name string) (any, bool)
}

// Globals is a static Host. Nil values count as absent.
type Globals map[string]any

func (g Globals) Global(name string) (any, bool) {
	v, ok := g[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Detect returns EmbeddedMessagingHost when the host exposes the embedded
// messaging marker and StandaloneExtension otherwise, including for a nil host.
func Detect(h Host) Environment {
	if h == nil {
		return StandaloneExtension
	}
	if _, ok := h.Global(EmbeddedHostGlobal); ok {
		return EmbeddedMessagingHost
	}
	return StandaloneExtension
}
