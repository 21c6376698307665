package service

import (
	"context"
	"strings"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/repo/postgres"
	"github.com/nailstore/nailstore-api/pkg/logger"
)

type GeoService interface {
	CountryExists(ctx context.Context) (bool, error)
	InsertInitData(ctx context.Context, country *domain.Country) error
	CitiesByRegion(ctx context.Context, regionID int) ([]domain.City, error)
	AddGeolocations(ctx context.Context, locations []domain.Geolocation) error
}

type geoService struct {
	geo postgres.GeoRepo
}

func NewGeoService(geo postgres.GeoRepo) GeoService {
	return &geoService{geo: geo}
}

func (s *geoService) CountryExists(ctx context.Context) (bool, error) {
	exists, err := s.geo.CountryExists(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check country data", "error", err)
		return false, domain.ErrInternal("failed to check country data")
	}
	return exists, nil
}

// InsertInitData loads the country reference tree once. A second load is
// rejected so seed runs are idempotent from the caller's point of view.
func (s *geoService) InsertInitData(ctx context.Context, country *domain.Country) error {
	if country == nil || strings.TrimSpace(country.Name) == "" {
		return domain.ErrValidation("country name is required")
	}

	exists, err := s.geo.CountryExists(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check country data", "error", err)
		return domain.ErrInternal("failed to load geo data")
	}
	if exists {
		return domain.ErrConflict("country data is already loaded")
	}

	if err := s.geo.InsertCountry(ctx, country); err != nil {
		logger.ErrorContext(ctx, "Failed to insert country data", "error", err)
		return domain.ErrInternal("failed to load geo data")
	}
	return nil
}

func (s *geoService) CitiesByRegion(ctx context.Context, regionID int) ([]domain.City, error) {
	cities, err := s.geo.CitiesByRegion(ctx, regionID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list cities", "error", err, "region_id", regionID)
		return nil, domain.ErrInternal("failed to list cities")
	}
	return cities, nil
}

// AddGeolocations bulk-inserts resolved addresses. One empty address rejects
// the whole batch before anything is written.
func (s *geoService) AddGeolocations(ctx context.Context, locations []domain.Geolocation) error {
	if len(locations) == 0 {
		return domain.ErrValidation("at least one geolocation is required")
	}
	for _, loc := range locations {
		if strings.TrimSpace(loc.Address) == "" {
			return domain.ErrValidation("every geolocation must carry a non-empty address")
		}
	}

	if err := s.geo.InsertGeolocations(ctx, locations); err != nil {
		logger.ErrorContext(ctx, "Failed to insert geolocations", "error", err)
		return domain.ErrInternal("failed to save geolocations")
	}
	return nil
}
