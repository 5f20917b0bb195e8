package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoreType categorizes a storefront.
type StoreType = string

const (
	StoreTypeRetail   StoreType = "retail"
	StoreTypeFood     StoreType = "food"
	StoreTypeServices StoreType = "services"
	StoreTypeOther    StoreType = "other"
)

// Account is the persistent record backing an identity. It is created
// once, during registration, and keyed by a UUID derived from the
// provider's external id so re-registration attempts stay idempotent.
//
// StoreIDs mirrors the store claim for backfill and reporting; claims are
// the authoritative authorization scope and this column is on its way out.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ExternalID    string      `bun:"external_id,notnull,unique" json:"external_id,omitempty"`
	Email         string      `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string      `bun:"display_name" json:"display_name,omitempty"`
	Role          UserRole    `bun:"account_role,notnull" json:"account_role,omitempty"`
	EmailVerified bool        `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	StoreIDs      []uuid.UUID `bun:"store_ids,array" json:"store_ids,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time  `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasStore reports whether the account has at least one linked store.
func (a *Account) HasStore() bool {
	return a != nil && len(a.StoreIDs) > 0
}

// HasStoreID reports whether storeID is already linked.
func (a *Account) HasStoreID(storeID uuid.UUID) bool {
	if a == nil {
		return false
	}
	for _, id := range a.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// Store is the storefront entity. Slug is globally unique; it is written
// exclusively through the conditional create in the stores repository.
type Store struct {
	bun.BaseModel `bun:"table:stores,alias:str"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID      `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Slug          string         `bun:"slug,notnull,unique" json:"slug,omitempty"`
	Name          string         `bun:"name,notnull" json:"name,omitempty"`
	Type          StoreType      `bun:"store_type,notnull" json:"store_type,omitempty"`
	WhatsApp      string         `bun:"whatsapp_number" json:"whatsapp_number,omitempty"`
	ThemeDefaults map[string]any `bun:"theme_defaults" json:"theme_defaults,omitempty"`
	Active        bool           `bun:"active,notnull" json:"active,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// defaultTheme is applied to stores created without explicit theming.
func defaultTheme() map[string]any {
	return map[string]any{
		"primary_color": "#1f2937",
		"accent_color":  "#f59e0b",
		"layout":        "grid",
	}
}
