package connect

// Status is the connection state of one widget browsing context.
type Status int

const (
	// StatusDisconnected means no usable session exists; the user must
	// connect interactively.
	StatusDisconnected Status = iota

	// StatusConnecting means an authorization attempt is in flight.
	StatusConnecting

	// StatusConnected means a valid access token is available.
	StatusConnected

	// StatusRefreshing means a silent token refresh is in flight.
	StatusRefreshing

	// StatusError means an unrecoverable API failure occurred; the next
	// transition is always to Disconnected.
	StatusError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Transport records which mechanism carried an authorization attempt. The
// callback-handling path differs between the two.
type Transport string

const (
	// TransportPopup completes via a cross-window message from the popup.
	TransportPopup Transport = "popup"

	// TransportRedirect completes via Bootstrap on page reload.
	TransportRedirect Transport = "redirect"

	// TransportNone means no attempt has been made in this context.
	TransportNone Transport = ""
)
