// Package provision drives the Archivault tenant provisioning wizard:
// business information, plan selection, payment method attachment, summary,
// and activation. Every call rides on the widget's authenticated API client
// and the step order is enforced client-side so the wizard UI cannot
// activate a tenant before a plan and payment method exist.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/archivault/connect-widget/provider"
)

// ErrStepOrder indicates a wizard step was invoked before its prerequisites.
var ErrStepOrder = errors.New("provisioning step out of order")

// BusinessInfo is the tenant's business profile, collected first.
type BusinessInfo struct {
	LegalName string `json:"legal_name"`
	Country   string `json:"country"`
	TaxID     string `json:"tax_id,omitempty"`
	Contact   string `json:"contact_email"`
}

// Plan is one subscription plan offered for the tenant.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	SeatLimit    int    `json:"seat_limit"`
	StorageQuota int64  `json:"storage_quota_bytes"`
}

// Summary is the pre-activation review of the pending tenant.
type Summary struct {
	Business      BusinessInfo `json:"business"`
	Plan          Plan         `json:"plan"`
	PaymentMethod string       `json:"payment_method_label"`
	TotalCents    int64        `json:"total_cents"`
	Currency      string       `json:"currency"`
}

// Tenant is the activated tenant record.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Config configures a wizard Client.
type Config struct {
	// API is the authenticated Archivault API client (required). Its token
	// source gates every step on a connected session.
	API *provider.APIClient

	// Logger for wizard diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client walks the provisioning wizard steps in order.
type Client struct {
	api    *provider.APIClient
	logger *slog.Logger

	mu          sync.Mutex
	haveInfo    bool
	havePlan    bool
	havePayment bool
}

// NewClient creates a wizard client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.API == nil {
		return nil, errors.New("api client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: cfg.API, logger: logger}, nil
}

// SaveBusinessInfo records the tenant's business profile. Always the first
// step; it may be re-run to correct entries.
func (c *Client) SaveBusinessInfo(ctx context.Context, info BusinessInfo) error {
	if info.LegalName == "" || info.Country == "" || info.Contact == "" {
		return errors.New("legal name, country and contact email are required")
	}
	if err := c.api.Put(ctx, "/v1/provisioning/business", info, nil); err != nil {
		return fmt.Errorf("failed to save business info: %w", err)
	}
	c.mu.Lock()
	c.haveInfo = true
	c.mu.Unlock()
	c.logger.Debug("business info saved", "country", info.Country)
	return nil
}

// ListPlans returns the plans available to the pending tenant.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var out struct {
		Plans []Plan `json:"plans"`
	}
	if err := c.api.Get(ctx, "/v1/provisioning/plans", &out); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return out.Plans, nil
}

// SelectPlan picks a plan. Requires business info.
func (c *Client) SelectPlan(ctx context.Context, planID string) error {
	if planID == "" {
		return errors.New("plan id is required")
	}
	c.mu.Lock()
	ok := c.haveInfo
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: business info must be saved before selecting a plan", ErrStepOrder)
	}

	body := map[string]string{"plan_id": planID}
	if err := c.api.Put(ctx, "/v1/provisioning/plan", body, nil); err != nil {
		return fmt.Errorf("failed to select plan: %w", err)
	}
	c.mu.Lock()
	c.havePlan = true
	c.mu.Unlock()
	return nil
}

// AttachPaymentMethod attaches an opaque payment-method token produced by
// the external payment element. The widget never sees card data. Requires a
// selected plan.
func (c *Client) AttachPaymentMethod(ctx context.Context, paymentToken string) error {
	if paymentToken == "" {
		return errors.New("payment method token is required")
	}
	c.mu.Lock()
	ok := c.havePlan
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: a plan must be selected before attaching payment", ErrStepOrder)
	}

	body := map[string]string{"payment_method_token": paymentToken}
	if err := c.api.Post(ctx, "/v1/provisioning/payment-method", body, nil); err != nil {
		return fmt.Errorf("failed to attach payment method: %w", err)
	}
	c.mu.Lock()
	c.havePayment = true
	c.mu.Unlock()
	return nil
}

// Summary returns the pre-activation review. Requires plan and payment.
func (c *Client) Summary(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	ok := c.havePlan && c.havePayment
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: summary requires a plan and a payment method", ErrStepOrder)
	}

	var out Summary
	if err := c.api.Get(ctx, "/v1/provisioning/summary", &out); err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	return &out, nil
}

// Activate creates the tenant. Requires every prior step.
func (c *Client) Activate(ctx context.Context) (*Tenant, error) {
	c.mu.Lock()
	ok := c.haveInfo && c.havePlan && c.havePayment
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: activation requires business info, plan and payment", ErrStepOrder)
	}

	var out Tenant
	if err := c.api.Post(ctx, "/v1/provisioning/activate", struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("failed to activate tenant: %w", err)
	}
	c.logger.Info("tenant activated", "tenant_id", out.ID)
	return &out, nil
}
