package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrStoreNotFound is the error we return for missing stores.
var ErrStoreNotFound = errors.New("store not found")

// Stores is the persistence surface for store entities. CreateWithSlug is
// the only write path for Store.Slug: a conditional create that loses to
// any already-committed slug, closing the check-then-act race left open
// by the advisory availability check.
type Stores interface {
	repository.Repository[*Store]

	CreateWithSlug(ctx context.Context, record *Store) (*Store, error)
	CreateWithSlugTx(ctx context.Context, tx bun.IDB, record *Store) (*Store, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetBySlug(ctx context.Context, slug string) (*Store, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Store, error)
}

type stores struct {
	repository.Repository[*Store]
	db *bun.DB
}

var _ Stores = (*stores)(nil)
var _ SlugFinder = (*stores)(nil)

// NewStoresRepository builds the stores repository.
func NewStoresRepository(db *bun.DB) Stores {
	repo := repository.NewRepository[*Store](db, repository.ModelHandlers[*Store]{
		NewRecord: func() *Store { return &Store{} },
		GetID: func(s *Store) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Store, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "slug"
		},
	})

	return &stores{
		Repository: repo,
		db:         db,
	}
}

func (s *stores) CreateWithSlug(ctx context.Context, record *Store) (*Store, error) {
	return s.CreateWithSlugTx(ctx, s.db, record)
}

// CreateWithSlugTx inserts the store only if its slug is not already
// committed. The uniqueness decision happens inside the insert itself, so
// two racing registrations can never both win the same slug.
func (s *stores) CreateWithSlugTx(ctx context.Context, tx bun.IDB, record *Store) (*Store, error) {
	if record == nil {
		return nil, ErrNoEmptyString
	}

	if err := ValidateSlug(record.Slug); err != nil {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.ThemeDefaults == nil {
		record.ThemeDefaults = defaultTheme()
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (slug) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		conflict := ErrSlugTaken.Clone()
		conflict.WithMetadata(map[string]any{
			"slug": record.Slug,
		})
		return nil, conflict
	}

	return record, nil
}

func (s *stores) SlugExists(ctx context.Context, slug string) (bool, error) {
	return s.db.NewSelect().
		Model((*Store)(nil)).
		Where("?TableAlias.slug = ?", slug).
		Exists(ctx)
}

func (s *stores) GetBySlug(ctx context.Context, slug string) (*Store, error) {
	record := new(Store)
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.slug = ?", slug).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}

	return record, nil
}

func (s *stores) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Store, error) {
	var records []*Store
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
