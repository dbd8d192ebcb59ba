// Package testing provides test utilities and database setup for testing the analytics backend
package testing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAdmin creates an active admin with the given credentials
func (tf *TestFixtures) CreateTestAdmin(username, password string) (*models.Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		Email:        fmt.Sprintf("%s@peakself.co", username),
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}
	return admin, nil
}

// CreateTestPost creates a published post with a unique slug
func (tf *TestFixtures) CreateTestPost(title string) (*models.Post, error) {
	slug := fmt.Sprintf("%s-%d", title, mathrand.Intn(1000000))
	post := &models.Post{
		Slug:        slug,
		Title:       title,
		PublishedAt: utils.ToPtr(utils.UTCNow()),
	}
	if err := tf.DB.DB.Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create test post: %w", err)
	}
	return post, nil
}

// CreateTestVisitor creates a visitor with a fresh random token
func (tf *TestFixtures) CreateTestVisitor(firstSource string) (*models.Visitor, error) {
	token, err := RandomVisitorToken()
	if err != nil {
		return nil, err
	}

	visitor := &models.Visitor{
		Token:       token,
		FirstSource: firstSource,
		CreatedAt:   utils.UTCNow(),
		LastSeenAt:  utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(visitor).Error; err != nil {
		return nil, fmt.Errorf("failed to create test visitor: %w", err)
	}
	return visitor, nil
}

// CreateTestSession creates a tracking session for the visitor
func (tf *TestFixtures) CreateTestSession(visitorID uint, source, landingPath string) (*models.TrackingSession, error) {
	session := &models.TrackingSession{
		UUID:        uuid.New(),
		VisitorID:   visitorID,
		Source:      source,
		LandingPath: landingPath,
		PageCount:   1,
		StartedAt:   utils.UTCNow(),
		LastSeenAt:  utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// CreateTestPageView appends a page view event to the session
func (tf *TestFixtures) CreateTestPageView(sessionID uint, path, source string, occurredAt time.Time) (*models.PageViewEvent, error) {
	ip := "127.0.0.1"
	ua := "Test User Agent"

	event := &models.PageViewEvent{
		SessionID:  sessionID,
		OccurredAt: occurredAt,
		Path:       path,
		Source:     source,
		IP:         &ip,
		UserAgent:  &ua,
	}
	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test page view: %w", err)
	}
	return event, nil
}

// CreateTestStat creates an engagement stat row with the given counters
func (tf *TestFixtures) CreateTestStat(postID uint, views, uniques int64) (*models.PostEngagementStat, error) {
	stat := &models.PostEngagementStat{
		PostID:         postID,
		TotalViews:     views,
		UniqueVisitors: uniques,
		UpdatedAt:      utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(stat).Error; err != nil {
		return nil, fmt.Errorf("failed to create test stat: %w", err)
	}
	return stat, nil
}

// RandomVisitorToken returns a 64 character hex token like the pipeline mints
func RandomVisitorToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
