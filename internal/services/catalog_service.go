// internal/services/catalog_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// CatalogService serves the product catalog and manages products and
// locations. Availability counts are informational; checkout re-checks under
// lock.
type CatalogService struct {
	db        *gorm.DB
	inventory *InventoryService
}

func NewCatalogService(db *gorm.DB, inventory *InventoryService) *CatalogService {
	return &CatalogService{db: db, inventory: inventory}
}

type ProductListing struct {
	models.Product
	Available int64 `json:"available"`
}

type CreateProductRequest struct {
	Name     string       `json:"name" binding:"required,max=255"`
	Metal    models.Metal `json:"metal" binding:"required"`
	WeightMg int64        `json:"weight_mg" binding:"required,min=1"`
	Purity   int          `json:"purity" binding:"required,min=1,max=1000"`
	Wage     int64        `json:"wage" binding:"min=0"`
	Images   []string     `json:"images"`
}

type UpdateProductRequest struct {
	Name   *string  `json:"name" binding:"omitempty,max=255"`
	Wage   *int64   `json:"wage" binding:"omitempty,min=0"`
	Images []string `json:"images"`
	Active *bool    `json:"active"`
}

// ListProducts pages active products with their sellable stock counts.
func (s *CatalogService) ListProducts(metal *models.Metal, page, limit int) ([]ProductListing, int64, error) {
	query := s.db.Model(&models.Product{}).Where("active = ?", true)
	if metal != nil {
		query = query.Where("metal = ?", *metal)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	offset := (page - 1) * limit
	if err := query.Order("weight_mg ASC").Offset(offset).Limit(limit).
		Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	listings := make([]ProductListing, 0, len(products))
	for _, product := range products {
		available, err := s.inventory.AvailableCount(product.ID, nil)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, ProductListing{Product: product, Available: available})
	}
	return listings, total, nil
}

// GetProduct loads one product with its stock count.
func (s *CatalogService) GetProduct(productID uuid.UUID) (*ProductListing, error) {
	var product models.Product
	err := s.db.First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	available, err := s.inventory.AvailableCount(product.ID, nil)
	if err != nil {
		return nil, err
	}
	return &ProductListing{Product: product, Available: available}, nil
}

// CreateProduct registers a new bar SKU.
func (s *CatalogService) CreateProduct(req *CreateProductRequest) (*models.Product, error) {
	if !req.Metal.Valid() {
		return nil, fmt.Errorf("unknown metal %q", req.Metal)
	}

	product := &models.Product{
		Name:     req.Name,
		Metal:    req.Metal,
		WeightMg: req.WeightMg,
		Purity:   req.Purity,
		Wage:     req.Wage,
		Images:   pq.StringArray(req.Images),
		Active:   true,
	}
	if err := s.db.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// UpdateProduct mutates the fields a SKU may change after units exist. Metal,
// weight and purity are fixed at creation: the engraved bars cannot change.
func (s *CatalogService) UpdateProduct(productID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	var product models.Product
	err := s.db.First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Wage != nil {
		updates["wage"] = *req.Wage
	}
	if req.Images != nil {
		updates["images"] = pq.StringArray(req.Images)
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return &product, nil
	}

	if err := s.db.Model(&product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

// ListLocations returns active custody locations, optionally for one dealer.
func (s *CatalogService) ListLocations(dealerID *uuid.UUID) ([]models.Location, error) {
	query := s.db.Where("active = ?", true)
	if dealerID != nil {
		query = query.Where("dealer_id = ?", *dealerID)
	}
	var locations []models.Location
	if err := query.Order("name ASC").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}
	return locations, nil
}

// CreateLocation adds a custody point for the caller's dealer profile.
func (s *CatalogService) CreateLocation(dealerUserID uuid.UUID, name, address string) (*models.Location, error) {
	var dealer models.DealerProfile
	err := s.db.Where("user_id = ? AND active = ?", dealerUserID, true).First(&dealer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewInvalidOwnership("user has no active dealer profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up dealer: %w", err)
	}

	location := &models.Location{
		DealerID: dealer.ID,
		Name:     name,
		Address:  address,
		Active:   true,
	}
	if err := s.db.Create(location).Error; err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return location, nil
}
