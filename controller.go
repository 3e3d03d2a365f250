// Package connect implements the Archivault connect widget core: the
// per-browsing-context controller that drives the OAuth authorization code +
// PKCE flow, persists the resulting token set under the dual-storage policy,
// and keeps the connection status current for the embedding UI.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/archivault/connect-widget/credentials"
	"github.com/archivault/connect-widget/host"
	"github.com/archivault/connect-widget/instrumentation"
	"github.com/archivault/connect-widget/messaging"
	"github.com/archivault/connect-widget/pkce"
	"github.com/archivault/connect-widget/provider"
	"github.com/archivault/connect-widget/security"
	"github.com/archivault/connect-widget/storage"
)

// stateNonceKey pins the most recently issued authorization nonce in the
// context-scoped session store.
const stateNonceKey = "archivault.connect.auth_nonce"

// Controller is the per-browsing-context state machine coordinating the
// authorization flow. The main widget window and the popup each construct
// their own Controller over the same storage.
type Controller struct {
	cfg      *credentials.ClientConfiguration
	tokens   *storage.TokenStore
	oauth    *provider.Client
	env      host.Environment
	opener   messaging.Opener
	channel  messaging.Channel
	watcher  messaging.WatcherConfig
	nav      host.Navigator
	states   storage.SessionStore
	guard    *security.Guard
	auditor  *security.Auditor
	logger   *slog.Logger
	instr    *instrumentation.Instrumentation
	onStatus func(Status)
	timeout  time.Duration
	now      func() time.Time

	listener *messaging.Listener

	mu           sync.Mutex
	status       Status
	transport    Transport
	attemptNonce string
	popup        messaging.Handle
}

// Compile-time interface check: the controller is the access token source
// for the authenticated API client.
var _ provider.AccessTokenSource = (*Controller)(nil)

// NewController creates a controller for one browsing context.
func NewController(cfg Config) (*Controller, error) {
	if cfg.ClientConfiguration == nil {
		return nil, errors.New("client configuration is required")
	}
	if cfg.TokenStore == nil {
		return nil, errors.New("token store is required")
	}
	if cfg.OAuth == nil {
		return nil, errors.New("oauth client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = messaging.DefaultWatchTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		cfg:      cfg.ClientConfiguration,
		tokens:   cfg.TokenStore,
		oauth:    cfg.OAuth,
		env:      cfg.Environment,
		opener:   cfg.Opener,
		channel:  cfg.Channel,
		watcher:  cfg.Watcher,
		nav:      cfg.Navigator,
		states:   cfg.StateStore,
		guard:    cfg.Guard,
		auditor:  cfg.Auditor,
		logger:   logger,
		instr:    cfg.Instrumentation,
		onStatus: cfg.OnStatusChange,
		timeout:  timeout,
		now:      now,
		status:   StatusDisconnected,
	}

	// The popup lands on the redirect URI, which shares the widget's origin;
	// that is the only origin terminal messages are accepted from.
	if cfg.Channel != nil && !cfg.Environment.Popup {
		origin, err := originOf(cfg.ClientConfiguration.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect URI: %w", err)
		}
		listener, err := messaging.NewListener(messaging.ListenerConfig{
			Channel:        cfg.Channel,
			ExpectedOrigin: origin,
			Logger:         logger,
			Auditor:        cfg.Auditor,
		})
		if err != nil {
			return nil, err
		}
		c.listener = listener
	}
	return c, nil
}

// Status returns the current connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Transport returns which transport carried the current attempt.
func (c *Controller) Transport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// Backend reports which storage backend holds the session, for the
// "session shared" vs "local only" UI indicator.
func (c *Controller) Backend() storage.Backend {
	return c.tokens.Backend()
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	prev := c.status
	c.status = s
	cb := c.onStatus
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("status changed", "from", prev.String(), "to", s.String())
		if cb != nil {
			cb(s)
		}
	}
}

// Bootstrap runs on page load. A callback URL carrying an authorization code
// takes priority over any cached session; otherwise the controller checks
// for an existing session. The returned error never leaves the controller in
// Connecting.
func (c *Controller) Bootstrap(ctx context.Context, pageURL *url.URL) error {
	if pageURL != nil {
		q := pageURL.Query()
		code, stateParam := q.Get("code"), q.Get("state")
		if code != "" && stateParam != "" {
			return c.handleCallback(ctx, code, stateParam)
		}
	}
	return c.CheckExistingSession(ctx)
}

// CheckExistingSession restores a session without user interaction: a live
// access token connects instantly with no network call; an expired one with
// a refresh token triggers a silent refresh; otherwise the widget stays
// disconnected awaiting user action.
func (c *Controller) CheckExistingSession(ctx context.Context) error {
	access, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		// Corrupted or unreadable stored data resets to Disconnected; there
		// is no caller above the controller that could handle it better.
		c.logger.Warn("failed to read stored access token", "error", err)
		_ = c.tokens.Clear(ctx)
		c.setStatus(StatusDisconnected)
		return nil
	}
	if access != "" {
		c.setStatus(StatusConnected)
		return nil
	}

	refresh, err := c.tokens.GetRefreshToken(ctx)
	if err != nil {
		c.logger.Warn("failed to read stored refresh token", "error", err)
		_ = c.tokens.Clear(ctx)
		c.setStatus(StatusDisconnected)
		return nil
	}
	if refresh == "" {
		c.setStatus(StatusDisconnected)
		return nil
	}

	c.setStatus(StatusRefreshing)
	return c.refresh(ctx, refresh)
}

// Connect starts an interactive authorization attempt. It opens a popup to
// the authorization endpoint, falling back to a full-page redirect when the
// runtime blocks popups. With popup transport the caller follows up with
// AwaitAuthorization; with redirect transport the flow completes via
// Bootstrap after the reload.
func (c *Controller) Connect(ctx context.Context) error {
	pair, err := pkce.NewPair()
	if err != nil {
		return fmt.Errorf("failed to generate PKCE pair: %w", err)
	}
	state := security.NewAuthorizationState(pair.CodeVerifier, c.cfg.ClientID, c.cfg.RedirectURI)

	authURL, err := c.oauth.AuthorizationURL(state, pair.CodeChallenge)
	if err != nil {
		return err
	}

	// Pinning the new nonce supersedes any in-flight attempt: a callback
	// from the earlier attempt will no longer validate.
	c.pinNonce(ctx, state.Nonce)

	if c.opener != nil {
		handle, err := c.opener.Open(authURL)
		switch {
		case err == nil:
			c.mu.Lock()
			c.transport = TransportPopup
			c.popup = handle
			c.mu.Unlock()
			c.setStatus(StatusConnecting)
			c.instr.Metrics().RecordPopupOpened(ctx)
			c.instr.Metrics().RecordConnectStarted(ctx, c.cfg.ClientID, string(TransportPopup))
			c.auditor.LogConnectStarted(c.cfg.ClientID, string(TransportPopup))
			return nil
		case errors.Is(err, messaging.ErrPopupBlocked):
			c.auditor.LogPopupBlocked(c.cfg.ClientID)
			c.instr.Metrics().RecordPopupBlocked(ctx)
			c.logger.Info("popup blocked, falling back to full-page redirect")
		default:
			return fmt.Errorf("failed to open authorization popup: %w", err)
		}
	}

	if c.nav == nil {
		c.clearNonce(ctx)
		return ErrPopupBlocked("popup blocked and no redirect fallback available")
	}
	if err := c.nav.Navigate(authURL); err != nil {
		c.clearNonce(ctx)
		return fmt.Errorf("failed to navigate to authorization endpoint: %w", err)
	}
	c.mu.Lock()
	c.transport = TransportRedirect
	c.popup = nil
	c.mu.Unlock()
	c.setStatus(StatusConnecting)
	c.instr.Metrics().RecordConnectStarted(ctx, c.cfg.ClientID, string(TransportRedirect))
	c.auditor.LogConnectStarted(c.cfg.ClientID, string(TransportRedirect))
	return nil
}

// AwaitAuthorization blocks until the current popup attempt produces its
// terminal message, the popup closes, or the attempt times out. Exactly one
// terminal message is processed per attempt; stale or foreign messages are
// dropped by the listener.
func (c *Controller) AwaitAuthorization(ctx context.Context) error {
	c.mu.Lock()
	handle := c.popup
	nonce := c.attemptNonce
	transport := c.transport
	c.mu.Unlock()

	if transport != TransportPopup || handle == nil {
		return errors.New("no popup attempt in flight")
	}
	if c.listener == nil {
		return errors.New("no message channel configured")
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- messaging.Watch(attemptCtx, handle, c.watcher)
	}()

	msgDone := make(chan *messaging.Message, 1)
	awaitErr := make(chan error, 1)
	go func() {
		msg, err := c.listener.Await(attemptCtx, nonce)
		if err != nil {
			awaitErr <- err
			return
		}
		msgDone <- msg
	}()

	select {
	case msg := <-msgDone:
		cancel()
		_ = handle.Close()
		return c.finishAttempt(ctx, msg)
	case err := <-watchDone:
		if errors.Is(err, messaging.ErrPopupClosed) || errors.Is(err, messaging.ErrPopupTimeout) {
			c.clearNonce(ctx)
			c.setStatus(StatusDisconnected)
			return err
		}
		return err
	case err := <-awaitErr:
		c.clearNonce(ctx)
		c.setStatus(StatusDisconnected)
		return err
	}
}

// finishAttempt applies the popup's terminal message in the opener context.
// The popup already saved the tokens in its own context, but context-scoped
// session storage does not propagate, so the opener persists again from the
// message payload.
func (c *Controller) finishAttempt(ctx context.Context, msg *messaging.Message) error {
	c.clearNonce(ctx)

	if msg.Type == messaging.TypeError {
		c.setStatus(StatusDisconnected)
		c.instr.Metrics().RecordCallbackProcessed(ctx, false)
		return NewWidgetError(ErrorCodeTokenExchangeFailed, msg.ErrorDescription)
	}

	token := &oauth2.Token{
		AccessToken:  msg.AccessToken,
		TokenType:    msg.TokenType,
		RefreshToken: msg.RefreshToken,
	}
	if msg.ExpiresIn > 0 {
		token.Expiry = c.now().Add(time.Duration(msg.ExpiresIn) * time.Second)
	}
	if err := c.tokens.SaveTokenSet(ctx, token); err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to persist token set: %w", err)
	}
	c.setStatus(StatusConnected)
	c.instr.Metrics().RecordCallbackProcessed(ctx, true)
	return nil
}

// handleCallback processes the provider redirect carrying code and state.
// In a popup context the outcome is posted to the opener as exactly one
// terminal message; in the main window (redirect transport) it completes
// locally.
func (c *Controller) handleCallback(ctx context.Context, code, stateParam string) error {
	state, err := security.DecodeState(stateParam)
	if err != nil {
		return c.rejectCallback(ctx, "malformed state")
	}

	recorded := c.recordedNonce(ctx)
	if !security.ValidateNonce(recorded, state.Nonce) {
		return c.rejectCallback(ctx, "nonce mismatch")
	}
	// The nonce is single-use; a replay of the same callback must not pass.
	c.clearNonce(ctx)

	if c.env.Popup {
		return c.completePopup(ctx, code, state)
	}

	c.setStatus(StatusConnecting)
	token, err := c.exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}
	if err := c.tokens.SaveTokenSet(ctx, token); err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to persist token set: %w", err)
	}
	c.setStatus(StatusConnected)
	return nil
}

// rejectCallback is the state-mismatch path: audit as a security event,
// drop in-flight PKCE material, surface a generic failure.
func (c *Controller) rejectCallback(ctx context.Context, reason string) error {
	c.logger.Warn("rejected authorization callback", "reason", reason)
	c.auditor.LogStateMismatch(c.cfg.ClientID)
	c.instr.Metrics().RecordStateMismatch(ctx)
	c.clearNonce(ctx)
	c.setStatus(StatusDisconnected)
	if c.env.Popup {
		// The popup has no UI of its own; the opener gets the generic error.
		c.postToOpener(ctx, messaging.NewErrorMessage("", ErrorCodeStateMismatch, "authorization failed"))
	}
	return ErrStateMismatch()
}

// completePopup runs the popup leg: exchange the code, save in this context,
// and post the one terminal message to the opener's exact origin. The popup
// closes itself afterwards regardless of outcome.
func (c *Controller) completePopup(ctx context.Context, code string, state *security.AuthorizationState) error {
	token, err := c.exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		msg := messaging.NewErrorMessage(state.Nonce, errorCodeOf(err), err.Error())
		c.postToOpener(ctx, msg)
		return err
	}

	// Save locally too: with shared host-session storage this write already
	// serves the opener, and the message payload covers the case where it
	// does not propagate.
	if err := c.tokens.SaveTokenSet(ctx, token); err != nil {
		c.logger.Warn("popup failed to persist token set locally", "error", err)
	}

	expiresIn := int64(0)
	if !token.Expiry.IsZero() {
		expiresIn = int64(token.Expiry.Sub(c.now()) / time.Second)
	}
	c.postToOpener(ctx, messaging.NewSuccessMessage(state.Nonce, token.AccessToken, token.TokenType, token.RefreshToken, expiresIn))
	return nil
}

func (c *Controller) postToOpener(ctx context.Context, msg *messaging.Message) {
	if c.channel == nil {
		c.logger.Warn("no message channel to reach opener")
		return
	}
	target := c.env.OpenerOrigin
	if target == "" {
		c.logger.Warn("no opener origin recorded, dropping terminal message")
		return
	}
	if err := c.channel.Post(ctx, target, msg); err != nil {
		c.logger.Warn("failed to post terminal message to opener", "error", err)
	}
}

// exchange redeems an authorization code, mapping provider errors into the
// widget taxonomy.
func (c *Controller) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if c.guard != nil && !c.guard.Allow(c.cfg.ClientID) {
		c.instr.Metrics().RecordGuardRejection(ctx, c.cfg.ClientID)
		return nil, ErrRateLimitExceeded("token endpoint call rejected by rate guard")
	}

	token, err := c.oauth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		var te *provider.TokenEndpointError
		if errors.As(err, &te) {
			return nil, ErrTokenExchangeFailed(te.HTTPStatus, te.Code, te.Description)
		}
		var ne *provider.NetworkError
		if errors.As(err, &ne) {
			return nil, ErrNetworkError("token exchange failed", ne)
		}
		return nil, ErrTokenExchangeFailed(0, "", err.Error())
	}

	c.auditor.LogCodeExchanged(c.cfg.ClientID, token.AccessToken)
	c.instr.Metrics().RecordCodeExchange(ctx, c.cfg.ClientID)
	return token, nil
}

// Refresh performs a silent token refresh. Any failure, network failures
// included, terminates the session: tokens are cleared and the status lands
// on Disconnected with no automatic retry.
func (c *Controller) Refresh(ctx context.Context) error {
	refresh, err := c.tokens.GetRefreshToken(ctx)
	if err != nil {
		_ = c.tokens.Clear(ctx)
		c.setStatus(StatusDisconnected)
		return ErrRefreshFailed("stored refresh token unreadable", err)
	}
	if refresh == "" {
		c.setStatus(StatusDisconnected)
		return ErrRefreshFailed("no refresh token stored", nil)
	}
	c.setStatus(StatusRefreshing)
	return c.refresh(ctx, refresh)
}

func (c *Controller) refresh(ctx context.Context, refreshToken string) error {
	if c.guard != nil && !c.guard.Allow(c.cfg.ClientID) {
		c.instr.Metrics().RecordGuardRejection(ctx, c.cfg.ClientID)
		c.setStatus(StatusDisconnected)
		return ErrRateLimitExceeded("refresh rejected by rate guard")
	}

	token, err := c.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		// Transient network failure is indistinguishable from revocation
		// from the client alone, so both terminate the session.
		_ = c.tokens.Clear(ctx)
		c.auditor.LogRefreshFailed(c.cfg.ClientID, err.Error())
		c.instr.Metrics().RecordRefreshFailed(ctx, c.cfg.ClientID)
		c.setStatus(StatusDisconnected)
		return ErrRefreshFailed("token refresh failed", err)
	}

	rotated := token.RefreshToken != "" && token.RefreshToken != refreshToken
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	if err := c.tokens.SaveTokenSet(ctx, token); err != nil {
		_ = c.tokens.Clear(ctx)
		c.setStatus(StatusDisconnected)
		return ErrRefreshFailed("failed to persist refreshed token set", err)
	}

	c.auditor.LogTokenRefreshed(c.cfg.ClientID, rotated)
	c.instr.Metrics().RecordTokenRefresh(ctx, c.cfg.ClientID, rotated)
	c.setStatus(StatusConnected)
	return nil
}

// AccessToken returns a current access token, refreshing proactively when
// the stored one is inside the skew buffer of expiry. It returns an empty
// token without error when the widget is disconnected. Implements
// provider.AccessTokenSource.
func (c *Controller) AccessToken(ctx context.Context) (string, error) {
	access, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}
	if access != "" {
		return access, nil
	}

	refresh, err := c.tokens.GetRefreshToken(ctx)
	if err != nil || refresh == "" {
		return "", err
	}
	c.setStatus(StatusRefreshing)
	if err := c.refresh(ctx, refresh); err != nil {
		return "", err
	}
	return c.tokens.GetAccessToken(ctx)
}

// Disconnect clears both token halves and returns to Disconnected. Purely
// local: no server-side revocation is assumed available.
func (c *Controller) Disconnect(ctx context.Context) error {
	if err := c.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stored tokens: %w", err)
	}
	c.clearNonce(ctx)
	if c.guard != nil {
		c.guard.Reset(c.cfg.ClientID)
	}
	c.auditor.LogDisconnected(c.cfg.ClientID, "user")
	c.instr.Metrics().RecordDisconnect(ctx, "user")
	c.setStatus(StatusDisconnected)
	return nil
}

func (c *Controller) pinNonce(ctx context.Context, nonce string) {
	c.mu.Lock()
	c.attemptNonce = nonce
	c.mu.Unlock()
	if c.states != nil {
		if err := c.states.Set(ctx, stateNonceKey, nonce); err != nil && !errors.Is(err, storage.ErrUnavailable) {
			c.logger.Warn("failed to pin authorization nonce", "error", err)
		}
	}
}

func (c *Controller) recordedNonce(ctx context.Context) string {
	c.mu.Lock()
	nonce := c.attemptNonce
	c.mu.Unlock()
	if nonce != "" {
		return nonce
	}
	if c.states != nil {
		stored, err := c.states.Get(ctx, stateNonceKey)
		if err == nil {
			return stored
		}
	}
	return ""
}

func (c *Controller) clearNonce(ctx context.Context) {
	c.mu.Lock()
	c.attemptNonce = ""
	c.mu.Unlock()
	if c.states != nil {
		_ = c.states.Delete(ctx, stateNonceKey)
	}
}

// errorCodeOf extracts the widget error code for the cross-window message.
func errorCodeOf(err error) string {
	var we *WidgetError
	if errors.As(err, &we) {
		return we.Code
	}
	return ErrorCodeTokenExchangeFailed
}

// originOf reduces a URL to its origin (scheme://host).
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
