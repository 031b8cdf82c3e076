package spider

import "strings"

// Spider describes one recognized crawler.
type Spider struct {
	// ID is a stable slug used as the spider's identity, e.g. "googlebot".
	ID string

	// Identifier is the lowercase substring matched against the User-Agent.
	Identifier string

	// Name is the human-readable crawler name shown in online lists.
	Name string
}

// Directory matches User-Agent strings against a list of known spiders.
// A Directory is immutable after construction and safe for concurrent use.
type Directory struct {
	spiders []Spider
}

// NewDirectory creates a directory from the given spider list. Identifiers
// are normalized to lowercase.
func NewDirectory(spiders ...Spider) *Directory {
	normalized := make([]Spider, len(spiders))
	for i, s := range spiders {
		s.Identifier = strings.ToLower(s.Identifier)
		normalized[i] = s
	}
	return &Directory{spiders: normalized}
}

// DefaultDirectory returns a directory seeded with the most common crawlers.
// Deployments with their own spider lists build a Directory from that data
// instead.
func DefaultDirectory() *Directory {
	return NewDirectory(
		Spider{ID: "googlebot", Identifier: "googlebot", Name: "Google"},
		Spider{ID: "bingbot", Identifier: "bingbot", Name: "Bing"},
		Spider{ID: "duckduckbot", Identifier: "duckduckbot", Name: "DuckDuckGo"},
		Spider{ID: "baiduspider", Identifier: "baiduspider", Name: "Baidu"},
		Spider{ID: "yandexbot", Identifier: "yandexbot", Name: "Yandex"},
		Spider{ID: "applebot", Identifier: "applebot", Name: "Apple"},
		Spider{ID: "facebookbot", Identifier: "facebookexternalhit", Name: "Facebook"},
		Spider{ID: "twitterbot", Identifier: "twitterbot", Name: "Twitter"},
		Spider{ID: "ahrefsbot", Identifier: "ahrefsbot", Name: "Ahrefs"},
		Spider{ID: "semrushbot", Identifier: "semrushbot", Name: "Semrush"},
	)
}

// Identify returns the spider id matching the User-Agent, if any.
func (d *Directory) Identify(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}

	ua := strings.ToLower(userAgent)
	for _, s := range d.spiders {
		if s.Identifier != "" && strings.Contains(ua, s.Identifier) {
			return s.ID, true
		}
	}

	return "", false
}
