package businessflow

import (
	"testing"

	"github.com/Munim94s/peakself-backend/utils"
	"github.com/stretchr/testify/assert"
)

func TestClassifySource_Referrers(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		want     SourceCategory
	}{
		{"instagram", "https://www.instagram.com/", SourceInstagram},
		{"instagram link wrapper", "https://l.instagram.com/?u=https%3A%2F%2Fpeakself.co", SourceInstagram},
		{"facebook", "https://facebook.com/some/page", SourceFacebook},
		{"facebook mobile", "https://m.facebook.com/", SourceFacebook},
		{"fb short domain", "https://fb.com/", SourceFacebook},
		{"youtube", "https://www.youtube.com/watch?v=abc", SourceYoutube},
		{"youtube short", "https://youtu.be/abc", SourceYoutube},
		{"google com", "https://www.google.com/search?q=habits", SourceGoogle},
		{"google country tld", "https://www.google.co.uk/url", SourceGoogle},
		{"google subdomain", "https://news.google.com/", SourceGoogle},
		{"unknown blog", "https://someblog.example.org/post", SourceOther},
		{"not a url", "gibberish without scheme", SourceOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySource(utils.ToPtr(tt.referrer), nil, "peakself.co", true)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestClassifySource_EmptyReferrerIsDirect(t *testing.T) {
	got := ClassifySource(nil, nil, "peakself.co", true)
	assert.Equal(t, SourceDirect, got.Category)

	got = ClassifySource(utils.ToPtr("   "), nil, "peakself.co", false)
	assert.Equal(t, SourceDirect, got.Category)
}

func TestClassifySource_OwnOriginIsDirect(t *testing.T) {
	got := ClassifySource(utils.ToPtr("https://peakself.co/blog/morning-routine"), nil, "peakself.co", false)
	assert.Equal(t, SourceDirect, got.Category)

	// www prefix on either side still matches
	got = ClassifySource(utils.ToPtr("https://www.peakself.co/"), nil, "https://peakself.co", false)
	assert.Equal(t, SourceDirect, got.Category)
}

func TestClassifySource_HintWinsOnFirstViewOnly(t *testing.T) {
	referrer := utils.ToPtr("https://someblog.example.org/")

	// Hint overrides the referrer on the session's first page view
	got := ClassifySource(referrer, utils.ToPtr("ig"), "peakself.co", true)
	assert.Equal(t, SourceInstagram, got.Category)

	// The same hint on a later navigation is ignored
	got = ClassifySource(referrer, utils.ToPtr("ig"), "peakself.co", false)
	assert.Equal(t, SourceOther, got.Category)

	// Unknown hints fall back to referrer classification
	got = ClassifySource(referrer, utils.ToPtr("tiktok"), "peakself.co", true)
	assert.Equal(t, SourceOther, got.Category)
}

func TestClassifySource_HintAliases(t *testing.T) {
	for hint, want := range map[string]SourceCategory{
		"instagram": SourceInstagram,
		"IG":        SourceInstagram,
		" insta ":   SourceInstagram,
		"fb":        SourceFacebook,
		"yt":        SourceYoutube,
		"google":    SourceGoogle,
		"direct":    SourceDirect,
	} {
		got := ClassifySource(nil, utils.ToPtr(hint), "peakself.co", true)
		assert.Equal(t, want, got.Category, "hint %q", hint)
	}
}

func TestClassifySource_KeepsRawReferrer(t *testing.T) {
	raw := "https://someblog.example.org/post"
	got := ClassifySource(utils.ToPtr(raw), nil, "peakself.co", true)
	assert.Equal(t, SourceOther, got.Category)
	assert.Equal(t, raw, got.RawReferrer)

	// Classified referrers carry the raw value too, so every recorded page
	// view keeps its referrer verbatim
	for _, referrer := range []string{
		"https://instagram.com/",
		"https://www.google.com/search?q=habits",
		"https://peakself.co/blog/morning-routine",
	} {
		got = ClassifySource(utils.ToPtr(referrer), nil, "peakself.co", true)
		assert.Equal(t, referrer, got.RawReferrer, referrer)
	}

	// A winning hint does not discard the referrer either
	got = ClassifySource(utils.ToPtr(raw), utils.ToPtr("ig"), "peakself.co", true)
	assert.Equal(t, SourceInstagram, got.Category)
	assert.Equal(t, raw, got.RawReferrer)

	// No referrer means nothing to keep
	got = ClassifySource(nil, nil, "peakself.co", true)
	assert.Empty(t, got.RawReferrer)
}

func TestValidSourceCategory(t *testing.T) {
	for _, s := range []string{"instagram", "facebook", "youtube", "google", "direct", "other"} {
		assert.True(t, ValidSourceCategory(s), s)
	}
	assert.False(t, ValidSourceCategory("tiktok"))
	assert.False(t, ValidSourceCategory(""))
	assert.False(t, ValidSourceCategory("Instagram"))
}
