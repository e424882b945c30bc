package goSession

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// CredentialProvider stores the session cookies. Any [http.CookieJar]
// satisfies it.
type CredentialProvider interface {
	Cookies(u *url.URL) []*http.Cookie
	SetCookies(u *url.URL, cookies []*http.Cookie)
}

// NewCookieJarProvider returns an in-memory cookie jar that honors the public
// suffix list.
func NewCookieJarProvider() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

func cookieValue(p CredentialProvider, u *url.URL, name string) string {
	for _, c := range p.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
