package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nailstore/nailstore-api/internal/pagination"
)

type Category struct {
	ID          int    `json:"category_id"`
	Name        string `json:"category_name"`
	Description string `json:"description"`
}

// ServiceListing is a priced service a master offers, denormalized with the
// category and owner names resolved at query time.
type ServiceListing struct {
	ServiceID       int64                `json:"service_id"`
	CategoryID      int                  `json:"category_id"`
	CategoryName    string               `json:"category_name"`
	OwnerID         uuid.UUID            `json:"owner_id"`
	MasterName      string               `json:"master_name"`
	Name            string               `json:"service_name"`
	Price           float64              `json:"price"`
	DurationMinutes int                  `json:"duration_minutes"`
	Descriptions    []ServiceDescription `json:"descriptions"`
}

// ServiceDescription is one paragraph of a listing description; Number is its
// 1-based position within the listing.
type ServiceDescription struct {
	DescriptionID int64  `json:"description_id"`
	ServiceID     int64  `json:"service_id"`
	Number        int    `json:"number"`
	Text          string `json:"text"`
}

// ServicePage is one page of listings plus its position metadata.
type ServicePage struct {
	PageInfo pagination.PageInfo `json:"page_info"`
	Services []ServiceListing    `json:"services"`
}

type AddServiceRequest struct {
	CategoryID      int      `json:"category_id"`
	Name            string   `json:"service_name"`
	Descriptions    []string `json:"descriptions"`
	Price           float64  `json:"price"`
	DurationMinutes int      `json:"duration_minutes"`
}

func (r *AddServiceRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *AddServiceRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if r.Price < 0 {
		return fmt.Errorf("service price cannot be negative")
	}
	if r.DurationMinutes < 0 {
		return fmt.Errorf("service duration cannot be negative")
	}
	return nil
}
