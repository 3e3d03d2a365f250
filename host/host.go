// Package host defines the capability interfaces the embedding CRM platform
// provides to the widget. The widget never introspects its runtime (frame
// identity, window hierarchy); every environmental fact arrives through an
// explicit capability so each browsing context can be constructed and tested
// in isolation.
package host

import "context"

// Environment describes the browsing context the widget was constructed in.
type Environment struct {
	// Embedded is true when the widget runs inside the host CRM. When false
	// (standalone development) the host session store and identity interface
	// are absent and the widget degrades to local-only storage.
	Embedded bool

	// Popup is true when this context is the authorization popup rather
	// than the main widget window.
	Popup bool

	// Origin is this context's own origin, e.g. "https://crm.example.com".
	Origin string

	// OpenerOrigin is the exact origin of the window that opened this
	// popup. Messages are posted to this origin and no other. Empty outside
	// popup contexts.
	OpenerOrigin string
}

// User is the host platform's view of the current CRM user.
type User struct {
	ID      string
	Role    string
	Profile string

	// Admin gates privileged operations such as writing the shared client
	// configuration record.
	Admin bool
}

// Identity is the host identity/permission interface.
type Identity interface {
	// CurrentUser returns the user the host session belongs to.
	CurrentUser(ctx context.Context) (*User, error)
}

// Navigator performs a full-page navigation of the current window. It is the
// fallback transport when the runtime refuses to open popups: the widget
// navigates itself to the authorization endpoint and completes the flow on
// reload via Bootstrap.
type Navigator interface {
	Navigate(url string) error
}
