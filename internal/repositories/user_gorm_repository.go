package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := database.Conn(ctx, r.db).Create(user).Error; err != nil {
		return apperror.FromDB(err, fmt.Sprintf("user %s", user.Username))
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username, fmt.Sprintf("user with username %s", username))
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email, fmt.Sprintf("user with email %s", email))
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id, fmt.Sprintf("user with ID %s", id))
}

func (r *GORMUserRepository) first(ctx context.Context, query, arg, what string) (*models.User, error) {
	var user models.User
	if err := database.Conn(ctx, r.db).First(&user, query, arg).Error; err != nil {
		return nil, apperror.FromDB(err, what)
	}
	return &user, nil
}
