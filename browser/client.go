// CLAUDE:SUMMARY Builds an http.Client whose cookie jar is primed from the live browser session.
package browser

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// HTTPClient returns a client whose jar carries the browser session
// cookies, so Go-side GETs against the archive hosts ride the login
// session without going through the page.
func (s *Session) HTTPClient() (*http.Client, error) {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("browser: get cookies: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("browser: cookie jar: %w", err)
	}

	grouped := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "" {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		grouped[domain] = append(grouped[domain], hc)
	}
	for domain, cs := range grouped {
		jar.SetCookies(&url.URL{Scheme: "https", Host: domain, Path: "/"}, cs)
	}

	// Per-request timeouts come from the download fetcher's context.
	return &http.Client{Jar: jar}, nil
}
