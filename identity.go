package scribdlink

import (
	"fmt"
	"regexp"
	"strings"
)

// Identity names a Scribd document recovered from a share URL.
type Identity struct {
	DocumentID   string // digits only
	TitleSlug    string // hyphenated, URL-safe
	DisplayTitle string
	Fallback     bool // true when only the loose pattern matched
}

var (
	// primaryPattern matches <sub>.scribd.com/(document|doc)/<digits>/<slug>.
	primaryPattern = regexp.MustCompile(`(?:[a-z]{2,3}\.)?scribd\.com/(?:document|doc)/(\d+)/?([^?/#]+)?`)

	// fallbackPattern accepts any of the known document types anywhere in the path.
	fallbackPattern = regexp.MustCompile(`(?:[a-z]{2,3}\.)?scribd\.com/(?:.*/)?(?:document|doc|presentation|book)/(\d+)`)
)

// ExtractIdentity parses a Scribd share URL into an Identity.
// It tries the strict document pattern first and falls back to the loose one,
// in which case no title can be recovered and a synthetic one is used.
func ExtractIdentity(rawURL string) (Identity, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Identity{}, fmt.Errorf("%w: empty URL", ErrInvalidReference)
	}

	if m := primaryPattern.FindStringSubmatch(rawURL); m != nil && m[1] != "" {
		docID := m[1]
		slug := strings.TrimSuffix(m[2], "/")
		if slug == "" {
			slug = defaultSlug(docID)
		}
		return Identity{
			DocumentID:   docID,
			TitleSlug:    slug,
			DisplayTitle: slugToTitle(slug),
		}, nil
	}

	if m := fallbackPattern.FindStringSubmatch(rawURL); m != nil && m[1] != "" {
		docID := m[1]
		return Identity{
			DocumentID:   docID,
			TitleSlug:    defaultSlug(docID),
			DisplayTitle: "Document " + docID,
			Fallback:     true,
		}, nil
	}

	return Identity{}, fmt.Errorf("%w: %s", ErrInvalidReference, rawURL)
}

func defaultSlug(docID string) string {
	return "document-" + docID
}

func slugToTitle(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}
