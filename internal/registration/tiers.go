package registration

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/tiketa/internal/models"
)

// ErrNoTier is returned when no tier matches and none is eligible.
var ErrNoTier = errors.New("no ticket tier available")

// Slugify lowercases, drops quotes and collapses every non-alphanumeric run to a
// single hyphen, trimming hyphens at both ends.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '"' || r == '‘' || r == '’' || r == '“' || r == '”':
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// Eligible reports whether a tier can be picked by default at now.
func Eligible(t models.EventTicket, now time.Time) bool {
	return t.IsActive && t.HasQuota() && t.OnSale(now)
}

// SelectTier picks the cheapest eligible tier, lowest id on ties.
func SelectTier(tiers []models.EventTicket, now time.Time) (models.EventTicket, bool) {
	eligible := make([]models.EventTicket, 0, len(tiers))
	for _, t := range tiers {
		if Eligible(t, now) {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return models.EventTicket{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Price != eligible[j].Price {
			return eligible[i].Price < eligible[j].Price
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible[0], true
}

// TierResolution is the outcome of resolving the ticket URL parameter.
type TierResolution struct {
	Tier      models.EventTicket
	Canonical string
	Redirect  bool
}

// ResolveTier maps the optional ticket parameter to a tier. The parameter matches a
// numeric id or the slug of a title. Without a usable parameter the default tier is
// selected. Redirect is set when the parameter differs from the canonical slug.
func ResolveTier(tiers []models.EventTicket, param string, now time.Time) (TierResolution, error) {
	param = strings.TrimSpace(param)

	if tier, ok := matchTier(tiers, param); ok {
		canonical := CanonicalSlug(tier)
		return TierResolution{Tier: tier, Canonical: canonical, Redirect: canonical != param}, nil
	}

	tier, ok := SelectTier(tiers, now)
	if !ok {
		return TierResolution{}, ErrNoTier
	}
	canonical := CanonicalSlug(tier)
	return TierResolution{Tier: tier, Canonical: canonical, Redirect: canonical != param}, nil
}

// CanonicalSlug is the URL form of a tier; the id when the title has no usable characters.
func CanonicalSlug(t models.EventTicket) string {
	if slug := Slugify(t.Title); slug != "" {
		return slug
	}
	return strconv.FormatInt(t.ID, 10)
}

func matchTier(tiers []models.EventTicket, param string) (models.EventTicket, bool) {
	if param == "" {
		return models.EventTicket{}, false
	}

	if id, err := strconv.ParseInt(param, 10, 64); err == nil {
		for _, t := range tiers {
			if t.ID == id {
				return t, true
			}
		}
	}

	want := Slugify(param)
	if want == "" {
		return models.EventTicket{}, false
	}
	for _, t := range tiers {
		if Slugify(t.Title) == want {
			return t, true
		}
	}
	return models.EventTicket{}, false
}
