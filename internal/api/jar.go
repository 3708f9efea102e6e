package api

import (
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// CookieStore persists cookies per host between runs.
type CookieStore interface {
	LoadCookies(host string) ([]*http.Cookie, error)
	SaveCookies(host string, cookies []*http.Cookie) error
	ClearCookies(host string) error
}

// NewJar returns an in-memory jar with public suffix rules.
func NewJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// PersistentJar is a cookie jar that writes every cookie the server sets
// through to a CookieStore, so a session outlives the process the way it
// outlives a browser tab.
type PersistentJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  CookieStore
	origin *url.URL
}

// NewPersistentJar creates a jar for origin and restores the cookies the
// store has for it.
func NewPersistentJar(store CookieStore, origin *url.URL) (*PersistentJar, error) {
	jar, err := NewJar()
	if err != nil {
		return nil, err
	}
	j := &PersistentJar{jar: jar, store: store, origin: origin}

	saved, err := store.LoadCookies(origin.Hostname())
	if err != nil {
		return nil, err
	}
	if len(saved) > 0 {
		jar.SetCookies(origin, saved)
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if trustedLoopback(u) {
		cookies = withoutSecure(cookies)
	}
	j.mu.Lock()
	j.jar.SetCookies(u, cookies)
	j.mu.Unlock()
	if err := j.store.SaveCookies(u.Hostname(), cookies); err != nil {
		log.Printf("saving cookies for %s: %v", u.Hostname(), err)
	}
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear forgets every cookie for the origin, in memory and on disk.
func (j *PersistentJar) Clear() error {
	jar, err := NewJar()
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return j.store.ClearCookies(j.origin.Hostname())
}

// trustedLoopback mirrors browsers, which treat http://localhost as a
// secure context: Secure cookies from a loopback host must still be sent
// back to it over plain http.
func trustedLoopback(u *url.URL) bool {
	if u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func withoutSecure(cookies []*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		cc := *c
		cc.Secure = false
		out[i] = &cc
	}
	return out
}

// Expiry resolves a Set-Cookie's lifetime to an absolute time. ok is false
// for cookies being deleted; a zero time means a session cookie.
func Expiry(c *http.Cookie, now time.Time) (expires time.Time, ok bool) {
	switch {
	case c.MaxAge < 0:
		return time.Time{}, false
	case c.MaxAge > 0:
		return now.Add(time.Duration(c.MaxAge) * time.Second), true
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return time.Time{}, false
		}
		return c.Expires, true
	}
	return time.Time{}, true
}
