// CLAUDE:SUMMARY Extracts and normalizes the PDF download URL from the site's execute-command script.
package archive

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// scriptPatterns are the two call shapes the archive uses for document
// delivery, in priority order. First match wins.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`finished\("([^"]+)",`),
	regexp.MustCompile(`display\("([^"]+)",`),
}

// normalizeCommandURL undoes the JSON string escaping the site applies
// to URLs embedded in command scripts and resolves the result against
// the archive page URL. An absolute reference overrides the base.
func normalizeCommandURL(raw, baseURL string) (string, error) {
	raw = strings.ReplaceAll(raw, `\/`, "/")
	raw = strings.ReplaceAll(raw, `\u0026`, "&")

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("archive: parse base URL: %w", err)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("archive: parse extracted link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// ExtractLink recovers the PDF download URL from an execute-command
// script. Returns ErrInvalidCommand when neither pattern matches; the
// orchestrator decides whether the row gets another attempt.
func ExtractLink(script, baseURL string) (string, error) {
	for _, p := range scriptPatterns {
		if m := p.FindStringSubmatch(script); m != nil {
			return normalizeCommandURL(m[1], baseURL)
		}
	}
	return "", ErrInvalidCommand
}
