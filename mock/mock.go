// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"
	"net/http"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.MessageRepository = (*Repository)(nil)
	_ relay.Observer          = (*Observer)(nil)
	_ relay.Adapter           = (*Adapter)(nil)
	_ relay.RequestBuilder    = (*RequestBuilder)(nil)
)

// Repository is a test double for relay.MessageRepository.
// InsertFn, UpdateFn and SaveFn are nil-safe: unset methods return nil.
type Repository struct {
	InsertFn func(ctx context.Context, msg relay.Message) error
	UpdateFn func(ctx context.Context, msg relay.Message) error
	SaveFn   func(ctx context.Context) error
}

// Insert delegates to InsertFn.
func (r *Repository) Insert(ctx context.Context, msg relay.Message) error {
	if r.InsertFn == nil {
		return nil
	}
	return r.InsertFn(ctx, msg)
}

// Update delegates to UpdateFn.
func (r *Repository) Update(ctx context.Context, msg relay.Message) error {
	if r.UpdateFn == nil {
		return nil
	}
	return r.UpdateFn(ctx, msg)
}

// Save delegates to SaveFn.
func (r *Repository) Save(ctx context.Context) error {
	if r.SaveFn == nil {
		return nil
	}
	return r.SaveFn(ctx)
}

// Observer is a test double for relay.Observer.
type Observer struct {
	ObserveFn func(u relay.Update)
}

// Observe delegates to ObserveFn. No-op when ObserveFn is nil.
func (o *Observer) Observe(u relay.Update) {
	if o.ObserveFn != nil {
		o.ObserveFn(u)
	}
}

// Adapter is a test double for relay.Adapter.
// ParseFn panics when nil to catch missing setup.
type Adapter struct {
	ParseFn func(payload string) []relay.Event
}

// Parse delegates to ParseFn.
func (a *Adapter) Parse(payload string) []relay.Event {
	return a.ParseFn(payload)
}

// RequestBuilder is a test double for relay.RequestBuilder.
// BuildRequestFn panics when nil to catch missing setup.
type RequestBuilder struct {
	BuildRequestFn func(ctx context.Context, cfg relay.ProviderConfig, history []relay.Message) (*http.Request, error)
}

// BuildRequest delegates to BuildRequestFn.
func (b *RequestBuilder) BuildRequest(ctx context.Context, cfg relay.ProviderConfig, history []relay.Message) (*http.Request, error) {
	return b.BuildRequestFn(ctx, cfg, history)
}
