package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nailstore/nailstore-api/internal/domain"
)

// CatalogRepo stores service listings and their categories.
type CatalogRepo interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	CategoryExists(ctx context.Context, categoryID int) (bool, error)

	CountByCategory(ctx context.Context, categoryID int) (int, error)
	ListByCategory(ctx context.Context, categoryID int, limit, offset int) ([]domain.ServiceListing, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.ServiceListing, error)

	Insert(ctx context.Context, listing *domain.ServiceListing, descriptions []string) (int64, error)
	DeleteOwned(ctx context.Context, serviceID int64, ownerID uuid.UUID) (bool, error)
}

type CatalogRepoImpl struct{ pool *pgxpool.Pool }

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepoImpl { return &CatalogRepoImpl{pool: pool} }

func (r *CatalogRepoImpl) Categories(ctx context.Context) ([]domain.Category, error) {
	const q = `SELECT category_id, category_name, description FROM categories ORDER BY category_id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *CatalogRepoImpl) CategoryExists(ctx context.Context, categoryID int) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM categories WHERE category_id = $1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, categoryID).Scan(&exists)
	return exists, err
}

func (r *CatalogRepoImpl) CountByCategory(ctx context.Context, categoryID int) (int, error) {
	const q = `SELECT count(*) FROM services WHERE category_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, q, categoryID).Scan(&count)
	return count, err
}

func (r *CatalogRepoImpl) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM services WHERE owner_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	err := r.pool.QueryRow(ctx, q, ownerID).Scan(&count)
	return count, err
}

// listingCols joins the denormalized category and owner names into each row.
// Ordering is by service_id only: stable, deterministic pagination.
const listingSelect = `
	SELECT s.service_id, s.category_id, c.category_name, s.owner_id, a.user_name,
	       s.service_name, s.price::float8, s.duration_minutes
	FROM services s
	JOIN categories c ON c.category_id = s.category_id
	JOIN accounts a ON a.id = s.owner_id`

func (r *CatalogRepoImpl) ListByCategory(ctx context.Context, categoryID int, limit, offset int) ([]domain.ServiceListing, error) {
	const q = listingSelect + `
	WHERE s.category_id = $1
	ORDER BY s.service_id
	LIMIT $2 OFFSET $3`
	return r.list(ctx, q, categoryID, limit, offset)
}

func (r *CatalogRepoImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.ServiceListing, error) {
	const q = listingSelect + `
	WHERE s.owner_id = $1
	ORDER BY s.service_id
	LIMIT $2 OFFSET $3`
	return r.list(ctx, q, ownerID, limit, offset)
}

func (r *CatalogRepoImpl) list(ctx context.Context, q string, filter any, limit, offset int) ([]domain.ServiceListing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]domain.ServiceListing, 0, limit)
	for rows.Next() {
		var l domain.ServiceListing
		if err := rows.Scan(
			&l.ServiceID, &l.CategoryID, &l.CategoryName, &l.OwnerID, &l.MasterName,
			&l.Name, &l.Price, &l.DurationMinutes,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.attachDescriptions(ctx, listings)
}

func (r *CatalogRepoImpl) attachDescriptions(ctx context.Context, listings []domain.ServiceListing) ([]domain.ServiceListing, error) {
	if len(listings) == 0 {
		return listings, nil
	}

	ids := make([]int64, len(listings))
	index := make(map[int64]int, len(listings))
	for i, l := range listings {
		ids[i] = l.ServiceID
		index[l.ServiceID] = i
	}

	const q = `
		SELECT description_id, service_id, number, text
		FROM service_descriptions
		WHERE service_id = ANY($1)
		ORDER BY service_id, number`

	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.ServiceDescription
		if err := rows.Scan(&d.DescriptionID, &d.ServiceID, &d.Number, &d.Text); err != nil {
			return nil, err
		}
		i := index[d.ServiceID]
		listings[i].Descriptions = append(listings[i].Descriptions, d)
	}
	return listings, rows.Err()
}

// Insert persists the listing and its numbered paragraphs in one transaction;
// a failure leaves nothing behind.
func (r *CatalogRepoImpl) Insert(ctx context.Context, listing *domain.ServiceListing, descriptions []string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const insertService = `
		INSERT INTO services (category_id, owner_id, service_name, price, duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING service_id`

	var serviceID int64
	err = tx.QueryRow(ctx, insertService,
		listing.CategoryID, listing.OwnerID, listing.Name, listing.Price, listing.DurationMinutes,
	).Scan(&serviceID)
	if err != nil {
		return 0, err
	}

	const insertDescription = `
		INSERT INTO service_descriptions (service_id, number, text)
		VALUES ($1, $2, $3)`

	for i, text := range descriptions {
		if _, err := tx.Exec(ctx, insertDescription, serviceID, i+1, text); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return serviceID, nil
}

// DeleteOwned removes the listing only when both id and owner match; the
// caller cannot tell a foreign listing from a missing one.
func (r *CatalogRepoImpl) DeleteOwned(ctx context.Context, serviceID int64, ownerID uuid.UUID) (bool, error) {
	const q = `DELETE FROM services WHERE service_id = $1 AND owner_id = $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, serviceID, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ CatalogRepo = (*CatalogRepoImpl)(nil)
