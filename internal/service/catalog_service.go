package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/pagination"
	"github.com/nailstore/nailstore-api/internal/repo/postgres"
	"github.com/nailstore/nailstore-api/pkg/events"
	"github.com/nailstore/nailstore-api/pkg/logger"
)

type CatalogService interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	ListByCategory(ctx context.Context, categoryID, pageNumber, pageSize int) (*domain.ServicePage, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, pageNumber, pageSize int) (*domain.ServicePage, error)
	AddService(ctx context.Context, ownerID uuid.UUID, req *domain.AddServiceRequest) (int64, error)
	RemoveService(ctx context.Context, ownerID uuid.UUID, serviceID int64) error
}

type catalogService struct {
	catalog postgres.CatalogRepo
	bus     events.Publisher

	now func() time.Time
}

func NewCatalogService(catalog postgres.CatalogRepo, bus events.Publisher) CatalogService {
	return &catalogService{
		catalog: catalog,
		bus:     bus,
		now:     time.Now,
	}
}

func (s *catalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.catalog.Categories(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list categories", "error", err)
		return nil, domain.ErrInternal("failed to list categories")
	}
	return cats, nil
}

// ListByCategory returns one page of listings in a category. Out-of-range page
// parameters are clamped, never rejected; a page past the end is just empty.
func (s *catalogService) ListByCategory(ctx context.Context, categoryID, pageNumber, pageSize int) (*domain.ServicePage, error) {
	pageNumber, pageSize = pagination.Normalize(pageNumber, pageSize)

	count, err := s.catalog.CountByCategory(ctx, categoryID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to count listings", "error", err, "category_id", categoryID)
		return nil, domain.ErrInternal("failed to list services")
	}

	listings, err := s.catalog.ListByCategory(ctx, categoryID, pageSize, pagination.Offset(pageNumber, pageSize))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list listings", "error", err, "category_id", categoryID)
		return nil, domain.ErrInternal("failed to list services")
	}

	return &domain.ServicePage{
		PageInfo: pagination.NewPageInfo(count, pageNumber, pageSize),
		Services: listings,
	}, nil
}

func (s *catalogService) ListByOwner(ctx context.Context, ownerID uuid.UUID, pageNumber, pageSize int) (*domain.ServicePage, error) {
	pageNumber, pageSize = pagination.Normalize(pageNumber, pageSize)

	count, err := s.catalog.CountByOwner(ctx, ownerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to count listings", "error", err, "owner_id", ownerID)
		return nil, domain.ErrInternal("failed to list services")
	}

	listings, err := s.catalog.ListByOwner(ctx, ownerID, pageSize, pagination.Offset(pageNumber, pageSize))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list listings", "error", err, "owner_id", ownerID)
		return nil, domain.ErrInternal("failed to list services")
	}

	return &domain.ServicePage{
		PageInfo: pagination.NewPageInfo(count, pageNumber, pageSize),
		Services: listings,
	}, nil
}

func (s *catalogService) AddService(ctx context.Context, ownerID uuid.UUID, req *domain.AddServiceRequest) (int64, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return 0, domain.ErrValidation(err.Error())
	}

	exists, err := s.catalog.CategoryExists(ctx, req.CategoryID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check category", "error", err, "category_id", req.CategoryID)
		return 0, domain.ErrInternal("failed to add service")
	}
	if !exists {
		return 0, domain.ErrNotFound("category not found")
	}

	listing := &domain.ServiceListing{
		CategoryID:      req.CategoryID,
		OwnerID:         ownerID,
		Name:            req.Name,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
	}
	serviceID, err := s.catalog.Insert(ctx, listing, req.Descriptions)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to insert listing", "error", err, "owner_id", ownerID)
		return 0, domain.ErrInternal("failed to add service")
	}

	s.publish(ctx, events.ListingCreated, events.ListingCreatedEvent{
		ServiceID:  serviceID,
		OwnerID:    ownerID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		CreatedAt:  s.now().UTC(),
	})

	return serviceID, nil
}

// RemoveService deletes a listing the caller owns. A missing listing and a
// listing owned by someone else are indistinguishable to the caller.
func (s *catalogService) RemoveService(ctx context.Context, ownerID uuid.UUID, serviceID int64) error {
	deleted, err := s.catalog.DeleteOwned(ctx, serviceID, ownerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete listing", "error", err, "service_id", serviceID)
		return domain.ErrInternal("failed to remove service")
	}
	if !deleted {
		return domain.ErrNotFound("service not found")
	}

	s.publish(ctx, events.ListingRemoved, events.ListingRemovedEvent{
		ServiceID: serviceID,
		OwnerID:   ownerID,
		RemovedAt: s.now().UTC(),
	})
	return nil
}

func (s *catalogService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
