package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/archivault/connect-widget/host"
	"github.com/archivault/connect-widget/storage"
)

// sharedConfigKey is the host-session variable holding the shared
// configuration record. Shared across every widget instance in the session.
const sharedConfigKey = "archivault.connect.shared_config"

// ErrPermissionDenied indicates a non-privileged caller attempted to write
// the shared configuration record.
var ErrPermissionDenied = errors.New("shared configuration writes require an admin user")

// SharedConfig is the host-managed shared configuration record: readable by
// any widget instance in the session, writable only by admin users.
type SharedConfig struct {
	store    storage.SessionStore
	identity host.Identity
}

// NewSharedConfig creates the shared configuration accessor. store may be
// nil in standalone mode; identity may be nil, which makes all writes fail.
func NewSharedConfig(store storage.SessionStore, identity host.Identity) *SharedConfig {
	return &SharedConfig{store: store, identity: identity}
}

// Name identifies the source.
func (s *SharedConfig) Name() string { return "shared_config" }

// Resolve returns the shared record's contribution. Implements Source.
func (s *SharedConfig) Resolve(ctx context.Context) (*Partial, error) {
	if s.store == nil {
		return nil, nil
	}
	raw, err := s.store.Get(ctx, sharedConfigKey)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read shared config: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var p Partial
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("shared config record is corrupted: %w", err)
	}
	return &p, nil
}

// Save writes the shared configuration record. Privileged: the current host
// user must carry the admin flag.
func (s *SharedConfig) Save(ctx context.Context, p *Partial) error {
	if s.store == nil {
		return storage.ErrUnavailable
	}
	if s.identity == nil {
		return ErrPermissionDenied
	}
	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil || !user.Admin {
		return ErrPermissionDenied
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode shared config: %w", err)
	}
	if err := s.store.Set(ctx, sharedConfigKey, string(data)); err != nil {
		return fmt.Errorf("failed to write shared config: %w", err)
	}
	return nil
}
