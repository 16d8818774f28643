package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
)

type Post struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	AuthorID    string         `gorm:"type:varchar(64);not null;index" json:"author_id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	Excerpt     string         `gorm:"type:text" json:"excerpt"`
	Content     string         `gorm:"type:longtext" json:"content,omitempty"`
	Visibility  string         `gorm:"type:varchar(16);not null;default:'public';index" json:"visibility"`
	Tags        string         `gorm:"type:varchar(500);default:''" json:"-"`
	PublishedAt *time.Time     `gorm:"type:timestamp;default:null;index" json:"published_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Visibility == "" {
		p.Visibility = string(entitlements.VisibilityPublic)
	}
	return nil
}

// TagList splits the comma separated tag column.
func (p *Post) TagList() []string {
	if strings.TrimSpace(p.Tags) == "" {
		return []string{}
	}
	parts := strings.Split(p.Tags, ",")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
