package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	apptesting "github.com/Munim94s/peakself-backend/testing"
	"github.com/Munim94s/peakself-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitorRegistry_MintsTokenForNewVisitor(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	registry := NewVisitorRegistry(repository.NewVisitorRepository(testDB.DB))
	ctx := context.Background()

	identity, err := registry.Identify(ctx, "", SourceInstagram)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.True(t, identity.IsNew)
	assert.Len(t, identity.Token, 64)

	var visitor models.Visitor
	require.NoError(t, testDB.DB.Where("id = ?", identity.ID).First(&visitor).Error)
	assert.Equal(t, identity.Token, visitor.Token)
	assert.Equal(t, "instagram", visitor.FirstSource)
}

func TestVisitorRegistry_KnownTokenIsReturned(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	registry := NewVisitorRegistry(repository.NewVisitorRepository(testDB.DB))
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("google")
	require.NoError(t, err)

	identity, err := registry.Identify(ctx, visitor.Token, SourceDirect)
	require.NoError(t, err)
	assert.False(t, identity.IsNew)
	assert.Equal(t, visitor.ID, identity.ID)
	assert.Equal(t, visitor.Token, identity.Token)
}

func TestVisitorRegistry_FirstSourceIsImmutable(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	registry := NewVisitorRegistry(repository.NewVisitorRepository(testDB.DB))
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("google")
	require.NoError(t, err)

	// A returning visitor arriving from Instagram keeps their original
	// first-touch attribution.
	_, err = registry.Identify(ctx, visitor.Token, SourceInstagram)
	require.NoError(t, err)

	var stored models.Visitor
	require.NoError(t, testDB.DB.Where("id = ?", visitor.ID).First(&stored).Error)
	assert.Equal(t, "google", stored.FirstSource)
}

func TestVisitorRegistry_ConcurrentFirstContactResolvesToOneVisitor(t *testing.T) {
	testDB, _ := setupAnalyticsDB(t)
	registry := NewVisitorRegistry(repository.NewVisitorRepository(testDB.DB))
	ctx := context.Background()

	token, err := apptesting.RandomVisitorToken()
	require.NoError(t, err)

	// N beacons race to register the same unseen token; the unique
	// constraint plus refetch must collapse them into one visitor row.
	const n = 10
	ids := make([]uint, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity, err := registry.Identify(ctx, token, SourceInstagram)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = identity.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "goroutine %d", i)
		assert.Equal(t, ids[0], ids[i], "goroutine %d resolved a different visitor", i)
	}

	var count int64
	require.NoError(t, testDB.DB.Model(&models.Visitor{}).Where("token = ?", token).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVisitorRegistry_BumpsLastSeen(t *testing.T) {
	testDB, fixtures := setupAnalyticsDB(t)
	registry := NewVisitorRegistry(repository.NewVisitorRepository(testDB.DB))
	ctx := context.Background()

	visitor, err := fixtures.CreateTestVisitor("direct")
	require.NoError(t, err)

	stale := utils.UTCNow().Add(-48 * time.Hour)
	require.NoError(t, testDB.DB.Model(&models.Visitor{}).
		Where("id = ?", visitor.ID).
		Update("last_seen_at", stale).Error)

	_, err = registry.Identify(ctx, visitor.Token, SourceDirect)
	require.NoError(t, err)

	var stored models.Visitor
	require.NoError(t, testDB.DB.Where("id = ?", visitor.ID).First(&stored).Error)
	assert.WithinDuration(t, utils.UTCNow(), stored.LastSeenAt, time.Minute)
}
