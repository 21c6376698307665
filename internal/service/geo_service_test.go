package service_test

import (
	"context"
	"testing"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/service"
)

type fakeGeoRepo struct {
	country   *domain.Country
	locations []domain.Geolocation
}

func (f *fakeGeoRepo) CountryExists(context.Context) (bool, error) {
	return f.country != nil, nil
}

func (f *fakeGeoRepo) InsertCountry(_ context.Context, country *domain.Country) error {
	f.country = country
	return nil
}

func (f *fakeGeoRepo) CitiesByRegion(_ context.Context, regionID int) ([]domain.City, error) {
	if f.country == nil {
		return nil, nil
	}
	for _, region := range f.country.Regions {
		if region.RegionID == regionID {
			return region.Cities, nil
		}
	}
	return nil, nil
}

func (f *fakeGeoRepo) InsertGeolocations(_ context.Context, locations []domain.Geolocation) error {
	f.locations = append(f.locations, locations...)
	return nil
}

func testCountry() *domain.Country {
	return &domain.Country{
		Name: "Testland",
		Regions: []domain.Region{
			{RegionID: 1, Name: "North", Cities: []domain.City{
				{Name: "Port Aurora", Latitude: 61.2, Longitude: 29.8},
			}},
		},
	}
}

func TestInsertInitData(t *testing.T) {
	repo := &fakeGeoRepo{}
	svc := service.NewGeoService(repo)

	if err := svc.InsertInitData(context.Background(), testCountry()); err != nil {
		t.Fatalf("InsertInitData() error = %v", err)
	}
	exists, _ := svc.CountryExists(context.Background())
	if !exists {
		t.Error("country not stored")
	}

	// A second load is refused.
	err := svc.InsertInitData(context.Background(), testCountry())
	wantCode(t, err, 400)
}

func TestInsertInitDataRejectsBlankCountry(t *testing.T) {
	svc := service.NewGeoService(&fakeGeoRepo{})
	wantCode(t, svc.InsertInitData(context.Background(), &domain.Country{Name: "  "}), 400)
	wantCode(t, svc.InsertInitData(context.Background(), nil), 400)
}

func TestAddGeolocations(t *testing.T) {
	repo := &fakeGeoRepo{}
	svc := service.NewGeoService(repo)

	err := svc.AddGeolocations(context.Background(), []domain.Geolocation{
		{Address: "1 Main St", Latitude: 61.2, Longitude: 29.8},
		{Address: "   "},
	})
	wantCode(t, err, 400)
	if len(repo.locations) != 0 {
		t.Errorf("partial batch written: %+v", repo.locations)
	}

	if err := svc.AddGeolocations(context.Background(), []domain.Geolocation{
		{Address: "1 Main St", Latitude: 61.2, Longitude: 29.8},
	}); err != nil {
		t.Fatalf("AddGeolocations() error = %v", err)
	}
	if len(repo.locations) != 1 {
		t.Errorf("batch not written: %+v", repo.locations)
	}
}

func TestCitiesByRegion(t *testing.T) {
	repo := &fakeGeoRepo{}
	svc := service.NewGeoService(repo)
	if err := svc.InsertInitData(context.Background(), testCountry()); err != nil {
		t.Fatalf("InsertInitData() error = %v", err)
	}

	cities, err := svc.CitiesByRegion(context.Background(), 1)
	if err != nil {
		t.Fatalf("CitiesByRegion() error = %v", err)
	}
	if len(cities) != 1 || cities[0].Name != "Port Aurora" {
		t.Errorf("cities = %+v", cities)
	}
}
