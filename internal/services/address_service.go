package services

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// AddressService manages a buyer's saved shipping addresses.
type AddressService struct {
	repo repositories.AddressRepository
}

func NewAddressService(repo repositories.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

func (s *AddressService) List(ctx context.Context, userID string) ([]models.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *AddressService) Create(ctx context.Context, userID string, address *models.Address) error {
	address.ID = ""
	address.UserID = userID
	return s.repo.Create(ctx, address)
}
