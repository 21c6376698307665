package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nailstore/nailstore-api/internal/domain"
)

// GeoRepo stores the country/region/city reference data and raw geolocations.
type GeoRepo interface {
	CountryExists(ctx context.Context) (bool, error)
	InsertCountry(ctx context.Context, country *domain.Country) error
	CitiesByRegion(ctx context.Context, regionID int) ([]domain.City, error)
	InsertGeolocations(ctx context.Context, locations []domain.Geolocation) error
}

type GeoRepoImpl struct{ pool *pgxpool.Pool }

func NewGeoRepo(pool *pgxpool.Pool) *GeoRepoImpl { return &GeoRepoImpl{pool: pool} }

func (r *GeoRepoImpl) CountryExists(ctx context.Context) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM countries)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q).Scan(&exists)
	return exists, err
}

// InsertCountry writes the country with all nested regions and cities in one
// transaction. City rows go in with CopyFrom since seed data can be large.
func (r *GeoRepoImpl) InsertCountry(ctx context.Context, country *domain.Country) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var countryID int
	err = tx.QueryRow(ctx,
		`INSERT INTO countries (country_name) VALUES ($1) RETURNING country_id`,
		country.Name,
	).Scan(&countryID)
	if err != nil {
		return err
	}

	var cityRows [][]any
	for _, region := range country.Regions {
		var regionID int
		err = tx.QueryRow(ctx,
			`INSERT INTO regions (country_id, region_name) VALUES ($1, $2) RETURNING region_id`,
			countryID, region.Name,
		).Scan(&regionID)
		if err != nil {
			return err
		}

		for _, city := range region.Cities {
			cityRows = append(cityRows, []any{
				regionID, city.Name, city.TimeZone, city.Latitude, city.Longitude,
			})
		}
	}

	if len(cityRows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"cities"},
			[]string{"region_id", "name_city", "time_zone", "latitude", "longitude"},
			pgx.CopyFromRows(cityRows),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *GeoRepoImpl) CitiesByRegion(ctx context.Context, regionID int) ([]domain.City, error) {
	const q = `
		SELECT id, region_id, name_city, time_zone, latitude, longitude
		FROM cities
		WHERE region_id = $1
		ORDER BY name_city`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []domain.City
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.RegionID, &c.Name, &c.TimeZone, &c.Latitude, &c.Longitude); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *GeoRepoImpl) InsertGeolocations(ctx context.Context, locations []domain.Geolocation) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows := make([][]any, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, []any{
			loc.RegionID, loc.Postcode, loc.Country, loc.City,
			loc.Street, loc.House, loc.Address, loc.Latitude, loc.Longitude,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"geolocations"},
		[]string{"region_id", "postcode", "country", "city", "street", "house", "address", "latitude", "longitude"},
		pgx.CopyFromRows(rows),
	)
	return err
}

var _ GeoRepo = (*GeoRepoImpl)(nil)
