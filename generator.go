package scribdlink

import (
	"strings"
)

// Default endpoints of the redirection service.
const (
	DefaultGeneratorBaseURL = "https://ilide.info/docgeneratev2"
	DefaultFileHost         = "https://scribd.vdownloaders.com/pdownload/"
)

// slugSeparator joins document id and slug inside the file reference.
// It is already percent-encoded and gets encoded once more with the reference.
const slugSeparator = "%2F"

// trackingParams are appended verbatim to every generated link.
const trackingParams = "utm_source=scrfree&utm_medium=queue&utm_campaign=dl"

// Generator builds redirection-service links. The zero value uses the defaults.
type Generator struct {
	BaseURL  string
	FileHost string
}

// Generate builds the target URL for id with the default endpoints.
func Generate(id Identity) string {
	return Generator{}.Generate(id)
}

// Generate builds the target URL for id. It is deterministic and never fails.
func (g Generator) Generate(id Identity) string {
	base := g.BaseURL
	if base == "" {
		base = DefaultGeneratorBaseURL
	}
	fileHost := g.FileHost
	if fileHost == "" {
		fileHost = DefaultFileHost
	}

	fileRef := fileHost + id.DocumentID + slugSeparator + id.TitleSlug
	title := "<div><p>" + slugToTitle(id.TitleSlug) + "</p></div>"

	var b strings.Builder
	b.Grow(len(base) + 3*(len(fileRef)+len(title)) + len(trackingParams) + 16)
	b.WriteString(base)
	b.WriteString("?fileurl=")
	b.WriteString(encodeURIComponent(fileRef))
	b.WriteString("&title=")
	b.WriteString(encodeURIComponent(title))
	b.WriteString("&")
	b.WriteString(trackingParams)
	return b.String()
}

const upperHex = "0123456789ABCDEF"

// encodeURIComponent percent-encodes every byte except the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ). Spaces become %20, not '+'.
func encodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIComponentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String()
}

func isURIComponentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
