package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

const (
	defaultPostPageSize = 20
	maxPostPageSize     = 100
)

// postRepository implements the PostRepository interface
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new post in the database
func (r *postRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// GetBySlug retrieves a post by its slug regardless of visibility
func (r *postRepository) GetBySlug(slug string) (*models.Post, error) {
	var post models.Post
	err := r.db.Where("slug = ?", slug).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPublished retrieves published posts, newest first. Private posts are
// only included for their author.
func (r *postRepository) ListPublished(q PostQuery) ([]models.Post, error) {
	var posts []models.Post
	err := r.published(q).
		Order("published_at DESC").
		Offset(max(q.Offset, 0)).
		Limit(pageSize(q.Limit)).
		Find(&posts).Error
	return posts, err
}

// CountPublished returns the number of posts ListPublished pages through
func (r *postRepository) CountPublished(q PostQuery) (int64, error) {
	var count int64
	err := r.published(q).Count(&count).Error
	return count, err
}

// Update updates an existing post in the database
func (r *postRepository) Update(post *models.Post) error {
	return r.db.Save(post).Error
}

// Delete soft deletes a post by its ID
func (r *postRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Post{}).Error
}

func (r *postRepository) published(q PostQuery) *gorm.DB {
	tx := r.db.Model(&models.Post{}).
		Where("published_at IS NOT NULL AND published_at <= ?", time.Now().UTC())
	if q.ViewerID != "" {
		tx = tx.Where("(visibility <> ? OR author_id = ?)", string(entitlements.VisibilityPrivate), q.ViewerID)
	} else {
		tx = tx.Where("visibility <> ?", string(entitlements.VisibilityPrivate))
	}
	if q.Tag != "" {
		// Tags are stored comma separated without spaces around the commas.
		tx = tx.Where("FIND_IN_SET(?, REPLACE(tags, ' ', '')) > 0", q.Tag)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		tx = tx.Where("(title LIKE ? ESCAPE '!' OR excerpt LIKE ? ESCAPE '!' OR content LIKE ? ESCAPE '!')", like, like, like)
	}
	return tx
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPostPageSize
	case limit > maxPostPageSize:
		return maxPostPageSize
	default:
		return limit
	}
}
