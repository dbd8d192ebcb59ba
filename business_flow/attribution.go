package businessflow

import (
	"net/url"
	"strings"
)

// SourceCategory is the canonical traffic-source classification of a page view.
type SourceCategory string

const (
	SourceInstagram SourceCategory = "instagram"
	SourceFacebook  SourceCategory = "facebook"
	SourceYoutube   SourceCategory = "youtube"
	SourceGoogle    SourceCategory = "google"
	SourceDirect    SourceCategory = "direct"
	SourceOther     SourceCategory = "other"
)

// SourceAttribution is the result of classifying one page view. RawReferrer
// keeps the referrer verbatim regardless of category, so every recorded page
// view carries it; reporting ranks only the "other" bucket by referrer.
type SourceAttribution struct {
	Category    SourceCategory
	RawReferrer string
}

// hintAliases maps explicit source hints (utm_source / src query values the
// client forwards) onto categories.
var hintAliases = map[string]SourceCategory{
	"instagram": SourceInstagram,
	"ig":        SourceInstagram,
	"insta":     SourceInstagram,
	"facebook":  SourceFacebook,
	"fb":        SourceFacebook,
	"youtube":   SourceYoutube,
	"yt":        SourceYoutube,
	"google":    SourceGoogle,
	"direct":    SourceDirect,
}

// platformDomains maps known referrer hosts onto categories. Matching is on
// the registrable suffix, so l.instagram.com and m.facebook.com classify too.
var platformDomains = map[string]SourceCategory{
	"instagram.com": SourceInstagram,
	"facebook.com":  SourceFacebook,
	"fb.com":        SourceFacebook,
	"youtube.com":   SourceYoutube,
	"youtu.be":      SourceYoutube,
}

// ClassifySource maps a raw referrer plus an optional explicit hint into a
// canonical source category. Pure: same inputs always produce the same
// category, no storage or network involved.
//
// Priority order: explicit hint (first page view of a session only), empty
// referrer on a first page view -> direct, known platform domain, own origin
// -> direct (internal navigation), everything else -> other with the raw
// referrer retained. Malformed referrers never fail classification.
func ClassifySource(referrer, hint *string, requestOrigin string, firstPageView bool) SourceAttribution {
	raw := ""
	if referrer != nil {
		raw = strings.TrimSpace(*referrer)
	}

	// Explicit hints only win on the session's first page view; a stale query
	// parameter on a later navigation must not re-attribute the visit.
	if firstPageView && hint != nil {
		if cat, ok := hintAliases[strings.ToLower(strings.TrimSpace(*hint))]; ok {
			return SourceAttribution{Category: cat, RawReferrer: raw}
		}
	}

	// No referrer at all: direct entry on a first view, internal navigation
	// otherwise. Both classify as direct.
	if raw == "" {
		return SourceAttribution{Category: SourceDirect}
	}

	host := referrerHost(raw)
	if host == "" {
		return SourceAttribution{Category: SourceOther, RawReferrer: raw}
	}

	if cat, ok := matchPlatform(host); ok {
		return SourceAttribution{Category: cat, RawReferrer: raw}
	}

	if ownOrigin(host, requestOrigin) {
		return SourceAttribution{Category: SourceDirect, RawReferrer: raw}
	}

	return SourceAttribution{Category: SourceOther, RawReferrer: raw}
}

// referrerHost extracts the lowercase host from a raw referrer, returning ""
// when the value is not a parseable absolute URL.
func referrerHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func matchPlatform(host string) (SourceCategory, bool) {
	for domain, cat := range platformDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return cat, true
		}
	}
	// google.* country domains (google.com, google.de, google.co.uk, ...)
	// including subdomains like news.google.com and www.google.co.uk
	if strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.") {
		return SourceGoogle, true
	}
	return "", false
}

// ownOrigin reports whether the referrer host is the site itself, which is
// internal navigation rather than an external referral.
func ownOrigin(host, requestOrigin string) bool {
	if requestOrigin == "" {
		return false
	}
	originHost := requestOrigin
	if u, err := url.Parse(requestOrigin); err == nil && u.Host != "" {
		originHost = u.Hostname()
	}
	originHost = strings.ToLower(strings.TrimPrefix(originHost, "www."))
	host = strings.TrimPrefix(host, "www.")
	return host == originHost
}

// ValidSourceCategory reports whether s is one of the canonical categories,
// used when filtering admin queries by source.
func ValidSourceCategory(s string) bool {
	switch SourceCategory(s) {
	case SourceInstagram, SourceFacebook, SourceYoutube, SourceGoogle, SourceDirect, SourceOther:
		return true
	}
	return false
}
