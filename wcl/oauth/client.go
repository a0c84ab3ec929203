package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"wcl_check/analysis"

	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const tokenURL = "https://www.warcraftlogs.com/oauth/token"

// Client holds a client-credentials bearer token and refreshes it lazily.
// Safe for concurrent use.
type Client struct {
	clientID     string
	clientSecret string

	headerLock    sync.Mutex
	headerValue   string
	headerExpires time.Time
}

func New(clientID string, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Reset drops the cached token. Called after an upstream 401 so the next
// request fetches a fresh one.
func (c *Client) Reset() {
	c.headerLock.Lock()
	c.headerValue = ""
	c.headerLock.Unlock()
}

// NewRequest builds an authorized request, refreshing the token first when
// it is missing or expired. Token failures come back as *analysis.TokenError.
func (c *Client) NewRequest(ctx context.Context, method string, urlStr string, body io.Reader) (*http.Request, error) {
	c.headerLock.Lock()
	defer c.headerLock.Unlock()

	now := time.Now()
	if c.headerValue == "" || now.After(c.headerExpires) {
		if err := c.refresh(ctx, now); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, urlStr, body)
	if err != nil {
		sentry.CaptureException(err)
		return nil, errors.WithStack(err)
	}
	req.Header = http.Header{
		"Authorization": []string{c.headerValue},
		"Content-Type":  []string{"application/json; encoding=utf-8"},
	}
	req = req.WithContext(ctx)

	return req, nil
}

func (c *Client) refresh(ctx context.Context, now time.Time) error {
	if c.clientID == "" || c.clientSecret == "" {
		return &analysis.TokenError{Reason: "oauth client credentials are not configured"}
	}

	form := url.Values{
		"grant_type":    []string{"client_credentials"},
		"client_id":     []string{c.clientID},
		"client_secret": []string{c.clientSecret},
	}

	req, _ := http.NewRequest(
		"POST",
		tokenURL,
		strings.NewReader(form.Encode()),
	)
	req.Header = http.Header{
		"Content-Type": []string{"application/x-www-form-urlencoded"},
	}
	req = req.WithContext(ctx)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		sentry.CaptureException(err)
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	var token struct {
		Error       string `json:"error"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err = jsoniter.NewDecoder(resp.Body).Decode(&token)
	if err != nil {
		sentry.CaptureException(err)
		return errors.WithStack(err)
	}
	if token.Error != "" || token.AccessToken == "" {
		reason := token.Error
		if reason == "" {
			reason = fmt.Sprintf("empty token (status %d)", resp.StatusCode)
		}
		return &analysis.TokenError{Reason: reason}
	}

	c.headerValue = "Bearer " + token.AccessToken
	c.headerExpires = now.Add(time.Duration(token.ExpiresIn) * time.Second)

	return nil
}
