package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/archivault/connect-widget/instrumentation"
	"github.com/archivault/connect-widget/internal/util"
	"github.com/archivault/connect-widget/security"
)

// Storage keys. The session keys are shared with co-located widget instances
// in the same host session; the standalone keys are the distinct namespace
// used when the session store is unavailable, so a later host-initialized
// load never confuses degraded-mode leftovers with shared session state.
const (
	sessionKeyAccessToken = "archivault.connect.access_token"
	sessionKeyTokenType   = "archivault.connect.token_type"
	sessionKeyExpiresAt   = "archivault.connect.expires_at"

	localKeyRefreshToken = "archivault.connect.refresh_token"

	standaloneKeyAccessToken = "archivault.connect.standalone.access_token"
	standaloneKeyTokenType   = "archivault.connect.standalone.token_type"
	standaloneKeyExpiresAt   = "archivault.connect.standalone.expires_at"
)

// tokenLogLength is the number of characters of a token included in debug logs.
const tokenLogLength = 8

// ErrCorruptedToken indicates stored token data that cannot be read back
// (unparseable expiry, undecryptable refresh token). Callers reset to a
// disconnected state rather than propagating it further.
var ErrCorruptedToken = errors.New("stored token data is corrupted")

// TokenStoreConfig configures a TokenStore.
type TokenStoreConfig struct {
	// Session is the host session store. Optional: when nil the token store
	// starts in degraded local-only mode (standalone/development).
	Session SessionStore

	// Local is the durable local store (required).
	Local LocalStore

	// Encryptor seals the refresh token at rest. Optional; nil stores the
	// refresh token in the clear.
	Encryptor *security.Encryptor

	// SkewBuffer is subtracted from token expiry when deciding validity.
	// Default: security.DefaultSkewBuffer (5 minutes).
	SkewBuffer time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation records storage operation metrics (optional).
	Instrumentation *instrumentation.Instrumentation

	// Now overrides the clock for testing (optional).
	Now func() time.Time
}

// TokenStore implements the dual-storage token policy: access token and
// expiry in the host session store, refresh token in durable local storage.
// When the session store is unavailable it degrades to local-only mode and
// records which backend is active so status reporting stays accurate.
type TokenStore struct {
	mu        sync.Mutex
	session   SessionStore
	local     LocalStore
	encryptor *security.Encryptor
	skew      time.Duration
	backend   Backend
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	now       func() time.Time
}

// NewTokenStore creates a token store over the given backends.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	if cfg.Local == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if cfg.SkewBuffer <= 0 {
		cfg.SkewBuffer = security.DefaultSkewBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	backend := BackendSession
	if cfg.Session == nil {
		backend = BackendLocal
	}

	s := &TokenStore{
		session:   cfg.Session,
		local:     cfg.Local,
		encryptor: cfg.Encryptor,
		skew:      cfg.SkewBuffer,
		backend:   backend,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if cfg.Instrumentation != nil {
		s.metrics = cfg.Instrumentation.Metrics()
	}
	return s, nil
}

// Backend reports which backend currently holds the access token.
func (s *TokenStore) Backend() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

// SkewBuffer returns the configured expiry skew buffer.
func (s *TokenStore) SkewBuffer() time.Duration {
	return s.skew
}

// SaveTokenSet persists a token set: access token + expiry to the session
// store (or, if unavailable, to local storage under the standalone keys) and
// the refresh token, if present, sealed into local storage. The refresh
// write failing fails the whole save; callers must not treat a half-written
// token set as complete.
func (s *TokenStore) SaveTokenSet(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("token set requires an access token")
	}

	start := s.now()
	backend, err := s.saveAccessHalf(ctx, token)
	if err == nil && token.RefreshToken != "" {
		err = s.saveRefreshHalf(ctx, token.RefreshToken)
	}
	s.recordOp(ctx, "save_token_set", backend, start, err)
	if err != nil {
		return err
	}

	s.logger.Debug("token set saved",
		"backend", backend,
		"access_token_prefix", util.SafeTruncate(token.AccessToken, tokenLogLength),
		"expires_at", token.Expiry,
		"has_refresh_token", token.RefreshToken != "",
	)
	return nil
}

// saveAccessHalf writes the access token, type and expiry, falling back to
// the standalone local keys when the session store is unavailable.
// Returns the backend actually used.
func (s *TokenStore) saveAccessHalf(ctx context.Context, token *oauth2.Token) (Backend, error) {
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	expiry := strconv.FormatInt(token.Expiry.Unix(), 10)
	if token.Expiry.IsZero() {
		expiry = "0"
	}

	if s.sessionAvailable() {
		err := s.writeAll(ctx, s.session, map[string]string{
			sessionKeyAccessToken: token.AccessToken,
			sessionKeyTokenType:   tokenType,
			sessionKeyExpiresAt:   expiry,
		})
		if err == nil {
			s.setBackend(BackendSession)
			return BackendSession, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return BackendSession, fmt.Errorf("failed to save access token: %w", err)
		}
		s.logger.Warn("host session store unavailable, falling back to local storage")
	}

	err := s.writeAll(ctx, s.local, map[string]string{
		standaloneKeyAccessToken: token.AccessToken,
		standaloneKeyTokenType:   tokenType,
		standaloneKeyExpiresAt:   expiry,
	})
	if err != nil {
		return BackendLocal, fmt.Errorf("failed to save access token: %w", err)
	}
	s.setBackend(BackendLocal)
	return BackendLocal, nil
}

func (s *TokenStore) saveRefreshHalf(ctx context.Context, refreshToken string) error {
	sealed := refreshToken
	if s.encryptor != nil {
		var err error
		sealed, err = s.encryptor.Seal(refreshToken)
		if err != nil {
			return fmt.Errorf("failed to seal refresh token: %w", err)
		}
	}
	if err := s.local.Set(ctx, localKeyRefreshToken, sealed); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// GetAccessToken returns the stored access token, or "" if absent or expired
// under the skew buffer. No implicit refresh happens here; the caller decides
// what an expired token means.
func (s *TokenStore) GetAccessToken(ctx context.Context) (string, error) {
	start := s.now()
	token, _, expiresAt, err := s.readAccessHalf(ctx)
	s.recordOp(ctx, "get_access_token", s.Backend(), start, err)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", nil
	}
	if security.IsTokenExpiredAt(expiresAt, s.skew, s.now()) {
		return "", nil
	}
	return token, nil
}

// TokenType returns the stored token type for Authorization headers, or ""
// when no access token is stored. A token saved without an explicit type
// reads back as "Bearer".
func (s *TokenStore) TokenType(ctx context.Context) (string, error) {
	token, tokenType, _, err := s.readAccessHalf(ctx)
	if err != nil || token == "" {
		return "", err
	}
	return tokenType, nil
}

// ExpiresAt returns the stored access token expiry, or the zero time when no
// token is stored. Used for proactive refresh decisions.
func (s *TokenStore) ExpiresAt(ctx context.Context) (time.Time, error) {
	token, _, expiresAt, err := s.readAccessHalf(ctx)
	if err != nil || token == "" {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// IsExpired reports whether the stored access token must be treated as
// expired under the skew buffer. A missing token counts as expired.
func (s *TokenStore) IsExpired(ctx context.Context) (bool, error) {
	token, _, expiresAt, err := s.readAccessHalf(ctx)
	if err != nil {
		return true, err
	}
	if token == "" {
		return true, nil
	}
	return security.IsTokenExpiredAt(expiresAt, s.skew, s.now()), nil
}

// GetRefreshToken returns the stored refresh token, or "" if absent.
// Returns ErrCorruptedToken when the sealed value cannot be opened.
func (s *TokenStore) GetRefreshToken(ctx context.Context) (string, error) {
	start := s.now()
	sealed, err := s.local.Get(ctx, localKeyRefreshToken)
	s.recordOp(ctx, "get_refresh_token", BackendLocal, start, err)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if sealed == "" {
		return "", nil
	}
	if s.encryptor == nil {
		return sealed, nil
	}
	opened, err := s.encryptor.Open(sealed)
	if err != nil {
		s.logger.Warn("stored refresh token cannot be opened", "error", err)
		return "", fmt.Errorf("%w: refresh token", ErrCorruptedToken)
	}
	return opened, nil
}

// Clear deletes both token halves unconditionally, from both backends.
// Used on disconnect and on unrecoverable refresh failure.
func (s *TokenStore) Clear(ctx context.Context) error {
	start := s.now()
	var firstErr error

	if s.sessionAvailable() {
		for _, key := range []string{sessionKeyAccessToken, sessionKeyTokenType, sessionKeyExpiresAt} {
			if err := s.session.Delete(ctx, key); err != nil && !errors.Is(err, ErrUnavailable) && firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, key := range []string{standaloneKeyAccessToken, standaloneKeyTokenType, standaloneKeyExpiresAt, localKeyRefreshToken} {
		if err := s.local.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.recordOp(ctx, "clear", s.Backend(), start, firstErr)
	if firstErr != nil {
		return fmt.Errorf("failed to clear token storage: %w", firstErr)
	}
	s.logger.Debug("token storage cleared")
	return nil
}

// readAccessHalf reads token/type/expiry from the active backend, flipping to
// local when the session store reports itself unavailable mid-session.
func (s *TokenStore) readAccessHalf(ctx context.Context) (string, string, time.Time, error) {
	keys := [3]string{sessionKeyAccessToken, sessionKeyExpiresAt, sessionKeyTokenType}
	var store interface {
		Get(ctx context.Context, key string) (string, error)
	}

	if s.Backend() == BackendSession {
		store = s.session
	} else {
		store = s.local
		keys = [3]string{standaloneKeyAccessToken, standaloneKeyExpiresAt, standaloneKeyTokenType}
	}

	token, err := store.Get(ctx, keys[0])
	if errors.Is(err, ErrUnavailable) && s.Backend() == BackendSession {
		s.setBackend(BackendLocal)
		return s.readAccessHalf(ctx)
	}
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return "", "", time.Time{}, nil
	}

	rawExpiry, err := store.Get(ctx, keys[1])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to read token expiry: %w", err)
	}
	unix, parseErr := strconv.ParseInt(rawExpiry, 10, 64)
	if parseErr != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: expiry %q", ErrCorruptedToken, util.SafeTruncate(rawExpiry, 32))
	}
	var expiresAt time.Time
	if unix > 0 {
		expiresAt = time.Unix(unix, 0)
	}

	tokenType, err := store.Get(ctx, keys[2])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to read token type: %w", err)
	}
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return token, tokenType, expiresAt, nil
}

func (s *TokenStore) sessionAvailable() bool {
	return s.session != nil
}

func (s *TokenStore) setBackend(b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != b {
		s.logger.Info("token storage backend changed", "backend", b)
		s.backend = b
	}
}

func (s *TokenStore) writeAll(ctx context.Context, store interface {
	Set(ctx context.Context, key, value string) error
}, values map[string]string) error {
	for key, value := range values {
		if err := store.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *TokenStore) recordOp(ctx context.Context, operation string, backend Backend, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordStorageOperation(ctx, operation, string(backend), result, float64(s.now().Sub(start).Microseconds())/1000.0)
}
