// CLAUDE:SUMMARY Pure filename resolution: sanitization, deterministic URL stems, header/query/path-based naming.
package archive

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

	// filenameDirective matches both the plain quoted form and the
	// RFC 5987 extended form of the Content-Disposition filename.
	filenameDirective = regexp.MustCompile(`(?i)filename\*?=(?:UTF-8''|")?([^";]+)`)
)

// stemKeys are the query parameters that identify a document, in
// priority order, for stable stem derivation.
var stemKeys = []string{"id", "documentId", "docId", "mailingId", "uuid"}

// nameKeys are the query parameters that may carry a display filename,
// in priority order.
var nameKeys = []string{"filename", "file", "name", "documentName", "id"}

// SanitizeFilename maps every character outside [A-Za-z0-9._-] to '_',
// trims '.' and '_' from the stem edges, and guarantees a non-empty stem
// ("document") and a non-empty extension (".pdf"). Idempotent.
func SanitizeFilename(name string) string {
	safe := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	safe = strings.Trim(safe, "._")
	if safe == "" {
		return "document.pdf"
	}

	ext := path.Ext(safe)
	stem := strings.TrimSuffix(safe, ext)
	stem = strings.TrimRight(stem, "._")
	if stem == "" {
		stem = "document"
	}
	if ext == "" {
		ext = ".pdf"
	}
	return stem + ext
}

// StemFromURL derives a deterministic, collision-resistant stem for a
// download URL: the first recognised document-id query parameter, or a
// 12-hex-char SHA-1 of the full URL when none is present. The stem is
// stable across runs so skip-existing works without re-fetching.
func StemFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		q := u.Query()
		for _, key := range stemKeys {
			v := q.Get(key)
			if v == "" {
				continue
			}
			value := SanitizeFilename(v)
			if strings.HasSuffix(strings.ToLower(value), ".pdf") {
				value = strings.TrimSuffix(value, path.Ext(value))
			}
			return "flatex_" + value
		}
	}
	sum := sha1.Sum([]byte(rawURL))
	return "flatex_" + hex.EncodeToString(sum[:])[:12]
}

// FilenameFrom resolves the final filename for a fetched document:
// Content-Disposition directive, then URL query parameters, then the URL
// path tail, then fallbackStem+".pdf". Every result ends in ".pdf" and
// is sanitized.
func FilenameFrom(header http.Header, rawURL, fallbackStem string) string {
	if header != nil {
		if m := filenameDirective.FindStringSubmatch(header.Get("Content-Disposition")); m != nil {
			if cand := strings.TrimSpace(percentDecode(m[1])); cand != "" {
				return SanitizeFilename(ensurePDF(cand))
			}
		}
	}
	return FilenameFromURL(rawURL, fallbackStem)
}

// FilenameFromURL is FilenameFrom without the header step: the
// optimistic name computed from the URL alone, used by the skip-existing
// short-circuit before any network call.
func FilenameFromURL(rawURL, fallbackStem string) string {
	if u, err := url.Parse(rawURL); err == nil {
		q := u.Query()
		for _, key := range nameKeys {
			if v := strings.TrimSpace(q.Get(key)); v != "" {
				return SanitizeFilename(ensurePDF(v))
			}
		}
		if tail := path.Base(u.Path); tail != "" && tail != "/" && tail != "." {
			return SanitizeFilename(ensurePDF(tail))
		}
	}
	return SanitizeFilename(fallbackStem + ".pdf")
}

func ensurePDF(name string) string {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name + ".pdf"
	}
	return name
}

func percentDecode(s string) string {
	// PathUnescape, not QueryUnescape: '+' in a filename is literal.
	if dec, err := url.PathUnescape(s); err == nil {
		return dec
	}
	return s
}
