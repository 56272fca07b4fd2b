// Package storage provides credential lookups for the BidMachine adapter harness
package storage

import (
	"context"
	"errors"
	"time"
)

// Credential status values
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// ErrNotFound is returned by writes that target a missing credential record
var ErrNotFound = errors.New("credentials not found")

// Credentials is the partner credentials blob configured for an app
type Credentials struct {
	AppID     string         `json:"app_id"`
	PartnerID string         `json:"partner_id"`
	Values    map[string]any `json:"credentials"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CredentialStore reads and writes partner credentials.
// Get returns nil, nil when no active record exists.
type CredentialStore interface {
	Get(ctx context.Context, appID string) (*Credentials, error)
	Put(ctx context.Context, creds *Credentials) error
	Delete(ctx context.Context, appID string) error
}
