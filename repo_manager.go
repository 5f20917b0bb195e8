package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus transaction control.
type RepositoryManager interface {
	StoreProvisioner
	Validate() error
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	Stores() Stores
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	stores   Stores
}

// NewRepositoryManager wires the account and store repositories over one
// bun connection.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		stores:   NewStoresRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.stores == nil {
		return errors.New("repository stores should be initialized")
	}

	return nil
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return m.db.RunInTx(ctx, opts, f)
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Stores() Stores {
	return m.stores
}

// ProvisionStore commits the account, the conditional store create, and
// the link in one transaction. The conditional create is the
// authoritative slug uniqueness decision; on a conflict the whole
// transaction rolls back and the error satisfies IsSlugConflict.
func (m mngr) ProvisionStore(ctx context.Context, account *Account, store *Store) (*Account, *Store, error) {
	var committedAccount *Account
	var committedStore *Store

	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		committedAccount, err = m.accounts.GetOrRegisterTx(ctx, tx, account)
		if err != nil {
			return err
		}

		store.OwnerID = committedAccount.ID
		committedStore, err = m.stores.CreateWithSlugTx(ctx, tx, store)
		if err != nil {
			return err
		}

		committedAccount, err = m.accounts.LinkStoreTx(ctx, tx, committedAccount, committedStore)
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	return committedAccount, committedStore, nil
}

// RegisterModels registers bun models so hosts can create tables and use
// fixtures in development setups.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*Account)(nil))
	db.RegisterModel((*Store)(nil))
}
