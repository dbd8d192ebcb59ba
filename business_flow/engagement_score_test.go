package businessflow

import (
	"testing"

	"github.com/Munim94s/peakself-backend/config"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/stretchr/testify/assert"
)

func scoreConfig() config.ScoreConfig {
	return config.ScoreConfig{
		WeightCompletion:    0.4,
		WeightScroll:        0.25,
		WeightTime:          0.2,
		WeightShares:        0.15,
		TimeTargetSeconds:   180,
		SharesPerViewTarget: 0.05,
	}
}

func TestComputeEngagementScore_ZeroViews(t *testing.T) {
	assert.Zero(t, ComputeEngagementScore(nil, scoreConfig()))
	assert.Zero(t, ComputeEngagementScore(&models.PostEngagementStat{}, scoreConfig()))
}

func TestComputeEngagementScore_ZeroWeights(t *testing.T) {
	stat := &models.PostEngagementStat{TotalViews: 100, Scroll100: 100}
	assert.Zero(t, ComputeEngagementScore(stat, config.ScoreConfig{}))
}

func TestComputeEngagementScore_FullEngagementIsHundred(t *testing.T) {
	// Every view read to the end, hit every checkpoint, stayed past the
	// time target and shared more than the target rate
	stat := &models.PostEngagementStat{
		TotalViews:    100,
		Scroll25:      100,
		Scroll50:      100,
		Scroll75:      100,
		Scroll100:     100,
		TotalShares:   10,
		AvgTimeOnPage: 300,
	}
	assert.InDelta(t, 100, ComputeEngagementScore(stat, scoreConfig()), 1e-9)
}

func TestComputeEngagementScore_PartialComponents(t *testing.T) {
	cfg := scoreConfig()
	// Half completion, half the checkpoints, half the time target, no shares
	stat := &models.PostEngagementStat{
		TotalViews:    100,
		Scroll25:      100,
		Scroll50:      100,
		Scroll75:      0,
		Scroll100:     0,
		AvgTimeOnPage: 90,
	}

	// completion = 0, scroll = 0.5, time = 0.5, shares = 0
	want := 100 * (cfg.WeightScroll*0.5 + cfg.WeightTime*0.5)
	assert.InDelta(t, want, ComputeEngagementScore(stat, cfg), 1e-9)
}

func TestComputeEngagementScore_ComponentsClamped(t *testing.T) {
	// Hostile counters past their bounds must not push the score over 100
	stat := &models.PostEngagementStat{
		TotalViews:    10,
		Scroll25:      50,
		Scroll50:      50,
		Scroll75:      50,
		Scroll100:     50,
		TotalShares:   500,
		AvgTimeOnPage: 100000,
	}
	score := ComputeEngagementScore(stat, scoreConfig())
	assert.LessOrEqual(t, score, 100.0)
	assert.InDelta(t, 100, score, 1e-9)
}

func TestComputeEngagementScore_MonotonicInShares(t *testing.T) {
	base := &models.PostEngagementStat{TotalViews: 100, Scroll100: 50, AvgTimeOnPage: 60}
	more := &models.PostEngagementStat{TotalViews: 100, Scroll100: 50, AvgTimeOnPage: 60, TotalShares: 3}

	assert.Greater(t, ComputeEngagementScore(more, scoreConfig()), ComputeEngagementScore(base, scoreConfig()))
}

func TestAvgScrollDepth(t *testing.T) {
	stat := &models.PostEngagementStat{TotalViews: 4, Scroll25: 4, Scroll50: 2, Scroll75: 1, Scroll100: 1}
	// (4+2+1+1) * 25 / 4 = 50
	assert.InDelta(t, 50, stat.AvgScrollDepth(), 1e-9)

	inflated := &models.PostEngagementStat{TotalViews: 1, Scroll25: 10, Scroll50: 10, Scroll75: 10, Scroll100: 10}
	assert.Equal(t, 100.0, inflated.AvgScrollDepth())

	assert.Zero(t, (&models.PostEngagementStat{}).AvgScrollDepth())
}

func TestEngagementRate(t *testing.T) {
	stat := &models.PostEngagementStat{TotalViews: 8, Scroll100: 2}
	assert.InDelta(t, 0.25, stat.EngagementRate(), 1e-9)
	assert.Zero(t, (&models.PostEngagementStat{}).EngagementRate())
}
