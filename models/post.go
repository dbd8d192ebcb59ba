package models

import "time"

// Post is a slim reference to a blog post owned by the CMS.
// Table: posts
// The analytics pipeline only reads it: engagement events against an unknown
// post id are dropped, and admin views join titles/slugs into aggregates.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Slug        string     `gorm:"size:255;not null;uniqueIndex:uk_posts_slug" json:"slug"`
	Title       string     `gorm:"size:512;not null" json:"title"`
	PublishedAt *time.Time `gorm:"index:idx_posts_published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Post) TableName() string { return "posts" }

// PostFilter represents filter criteria for post queries
type PostFilter struct {
	ID        *uint
	Slug      *string
	Published *bool
}
