package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Doer is the transport primitive. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var ErrTokenExpired = errors.New("access token expired")

// Credentials accompany every exchange: a bearer token and/or a session
// cookie kept in the client's cookie jar.
type Credentials struct {
	AccessToken   string
	SessionCookie *http.Cookie
}

// Expiry returns the exp claim of a JWT access token. ok is false for
// opaque tokens or tokens without exp. The signature is not checked; the
// server does that.
func (c Credentials) Expiry() (exp time.Time, ok bool) {
	if c.AccessToken == "" {
		return time.Time{}, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	nd, err := token.Claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Validate fails only for JWT access tokens already past their exp claim.
func (c Credentials) Validate(now time.Time) error {
	if exp, ok := c.Expiry(); ok && !now.Before(exp) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return nil
}

func (c Credentials) apply(req *http.Request) {
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}
}

// NewHTTPClient builds the default transport: redirects are followed and
// cookies (including the configured session cookie) are sent on every
// request to the service.
func NewHTTPClient(prefix string, creds Credentials) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	if creds.SessionCookie != nil {
		u, err := url.Parse(prefix)
		if err != nil {
			return nil, fmt.Errorf("parse api prefix: %w", err)
		}
		jar.SetCookies(u, []*http.Cookie{creds.SessionCookie})
	}

	return &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}
