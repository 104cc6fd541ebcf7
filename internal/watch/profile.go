package watch

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile selects the classifier rule set for a storefront family.
type Profile string

// Supported profiles.
const (
	// ProfileGeneric applies the default add-to-cart heuristics.
	ProfileGeneric Profile = "generic"
	// ProfileShopify runs Shopify sold-out and variant-availability checks
	// in front of the generic rules.
	ProfileShopify Profile = "shopify"
)

// ParseProfile maps a configuration string to a Profile. The empty string
// resolves to ProfileGeneric.
func ParseProfile(raw string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ProfileGeneric:
		return ProfileGeneric, nil
	case ProfileShopify:
		return ProfileShopify, nil
	default:
		return "", fmt.Errorf("unknown watch profile %q", raw)
	}
}

// rules returns the profile-specific rules evaluated ahead of the generic
// list.
func (p Profile) rules() []rule {
	if p == ProfileShopify {
		return shopifyRules()
	}
	return nil
}

func shopifyRules() []rule {
	return []rule{
		{
			reason: ReasonSoldOut,
			match: func(p *pageView) bool {
				return strings.Contains(p.text, "sold out")
			},
		},
		{
			reason: ReasonVariantGone,
			match:  variantUnavailable,
		},
	}
}

// variantUnavailable mines the embedded product JSON for the availability of
// the variant named by the watch URL's "variant" query parameter. Shopify
// themes inline this data in script tags rather than rendering it, so the
// scan runs over the raw markup.
func variantUnavailable(p *pageView) bool {
	id := p.variantID()
	if id == "" {
		return false
	}
	quoted := regexp.QuoteMeta(id)
	unavailable := regexp.MustCompile(`(?i)"id"\s*:\s*` + quoted + `[^}]*"available"\s*:\s*false`)
	if unavailable.MatchString(p.raw) {
		return true
	}
	inventory := regexp.MustCompile(`(?i)"id"\s*:\s*` + quoted + `[^}]*"inventory_quantity"\s*:\s*(\d+)`)
	if m := inventory.FindStringSubmatch(p.raw); m != nil {
		return m[1] == "0"
	}
	return false
}

func (p *pageView) variantID() string {
	if p.url == nil {
		return ""
	}
	return p.url.Query().Get("variant")
}
