package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates a ProteinDock API caller. Raw keys are "pdk_"-prefixed
// and shown once at creation; only the bcrypt hash is stored, and the 8-char
// KeyPrefix narrows the lookup at auth time. Scopes gate routes: read/write
// for docking and structure endpoints, admin for key management.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	TenantID   uuid.UUID  `db:"tenant_id"    json:"tenant_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}
