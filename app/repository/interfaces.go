package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
)

// PostQuery narrows a published post listing.
type PostQuery struct {
	// ViewerID lets authors see their own private posts in listings.
	ViewerID string
	Tag      string
	// Search matches title, excerpt and content as a substring.
	Search   string
	Offset   int
	Limit    int
}

// PostRepository defines the interface for post-related database operations
type PostRepository interface {
	Create(post *models.Post) error
	GetBySlug(slug string) (*models.Post, error)
	ListPublished(q PostQuery) ([]models.Post, error)
	CountPublished(q PostQuery) (int64, error)
	Update(post *models.Post) error
	Delete(id string) error
}

// Repositories holds all repository instances
type Repositories struct {
	Post    PostRepository
	Billing billing.Repository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Post:    NewPostRepository(db),
		Billing: billing.NewRepository(db),
	}
}
