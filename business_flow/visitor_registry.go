package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
)

// VisitorRegistry resolves a client-held token to a durable anonymous
// visitor identity, minting both when the client arrives without one.
type VisitorRegistry interface {
	// Identify returns the visitor for token, creating it with firstSource
	// when the token is unseen or empty. The boolean reports creation.
	// first_source is immutable: on an existing visitor the passed
	// attribution is ignored and only last_seen_at is bumped.
	Identify(ctx context.Context, token string, firstSource SourceCategory) (*VisitorIdentity, error)
}

// VisitorIdentity is the registry's answer for one beacon
type VisitorIdentity struct {
	ID    uint
	Token string
	IsNew bool
}

// VisitorRegistryImpl implements VisitorRegistry on the visitor repository
type VisitorRegistryImpl struct {
	visitorRepo repository.VisitorRepository
}

func NewVisitorRegistry(visitorRepo repository.VisitorRepository) VisitorRegistry {
	return &VisitorRegistryImpl{visitorRepo: visitorRepo}
}

func (vr *VisitorRegistryImpl) Identify(ctx context.Context, token string, firstSource SourceCategory) (*VisitorIdentity, error) {
	now := utils.UTCNow()

	if token == "" {
		minted, err := newVisitorToken()
		if err != nil {
			return nil, NewBusinessError("VISITOR_TOKEN_GENERATION_FAILED", "Failed to generate visitor token", err)
		}
		token = minted
	}

	visitor, created, err := vr.visitorRepo.UpsertByToken(ctx, token, string(firstSource), now)
	if err != nil {
		return nil, NewBusinessError("VISITOR_UPSERT_FAILED", "Failed to upsert visitor", err)
	}
	if visitor == nil {
		return nil, NewBusinessError("VISITOR_NOT_FOUND", "Visitor vanished after upsert", ErrVisitorNotFound)
	}

	if !created {
		if err := vr.visitorRepo.TouchLastSeen(ctx, visitor.ID, now); err != nil {
			return nil, NewBusinessError("VISITOR_TOUCH_FAILED", "Failed to update visitor last seen", err)
		}
	}

	return &VisitorIdentity{
		ID:    visitor.ID,
		Token: visitor.Token,
		IsNew: created,
	}, nil
}

// newVisitorToken mints a 64-char hex token for the client to persist
func newVisitorToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
