package util

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableDomain returns the eTLD+1 of a URL's host, e.g. "myshop.co.uk"
// for "https://www.myshop.co.uk/p/1".
func RegistrableDomain(rawURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// SameSite reports whether both URLs belong to the same registrable domain.
// Unparseable URLs never match.
func SameSite(a, b string) bool {
	da, err := RegistrableDomain(a)
	if err != nil {
		return false
	}
	db, err := RegistrableDomain(b)
	if err != nil {
		return false
	}
	return da == db
}
