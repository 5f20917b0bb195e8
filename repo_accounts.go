package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the persistence surface for account records.
type Accounts interface {
	repository.Repository[*Account]

	GetByExternalID(ctx context.Context, externalID string) (*Account, error)
	GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*Account, error)
	Register(ctx context.Context, record *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	GetOrRegister(ctx context.Context, record *Account) (*Account, error)
	GetOrRegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	LinkStore(ctx context.Context, account *Account, store *Store) (*Account, error)
	LinkStoreTx(ctx context.Context, tx bun.IDB, account *Account, store *Store) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository builds the accounts repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "external_id"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

// AccountIDFromExternalID derives the stable UUID primary key for a
// provider external id. Re-registering the same identity always maps to
// the same account row.
func AccountIDFromExternalID(externalID string) (uuid.UUID, error) {
	if externalID == "" {
		return uuid.Nil, ErrNoEmptyString
	}
	return hashid.NewUUID(externalID)
}

func (a *accounts) GetByExternalID(ctx context.Context, externalID string) (*Account, error) {
	return a.GetByExternalIDTx(ctx, a.db, externalID)
}

func (a *accounts) GetByExternalIDTx(ctx context.Context, tx bun.IDB, externalID string) (*Account, error) {
	record := new(Account)
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.external_id = ?", externalID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Register(ctx context.Context, record *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record.ID == uuid.Nil {
		id, err := AccountIDFromExternalID(record.ExternalID)
		if err != nil {
			return nil, err
		}
		record.ID = id
	}

	if record.Role == "" {
		record.Role = RoleOwner
	}

	return a.CreateTx(ctx, tx, record)
}

func (a *accounts) GetOrRegister(ctx context.Context, record *Account) (*Account, error) {
	return a.GetOrRegisterTx(ctx, a.db, record)
}

// GetOrRegisterTx makes account creation idempotent for a provider
// identity: a retry after a partial registration failure lands on the
// already-created row.
func (a *accounts) GetOrRegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	existing, err := a.GetByExternalIDTx(ctx, tx, record.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	return a.RegisterTx(ctx, tx, record)
}

func (a *accounts) LinkStore(ctx context.Context, account *Account, store *Store) (*Account, error) {
	return a.LinkStoreTx(ctx, a.db, account, store)
}

// LinkStoreTx appends the store id to the account's legacy store list.
// Claims remain the authoritative scope; this column feeds backfill and
// reporting only.
func (a *accounts) LinkStoreTx(ctx context.Context, tx bun.IDB, account *Account, store *Store) (*Account, error) {
	if account == nil || store == nil {
		return nil, ErrNoEmptyString
	}

	if account.HasStoreID(store.ID) {
		return account, nil
	}

	account.StoreIDs = append(account.StoreIDs, store.ID)

	_, err := tx.NewUpdate().
		Model(account).
		Column("store_ids", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return account, nil
}
