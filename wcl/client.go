package wcl

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"wcl_check/analysis"
	"wcl_check/metrics"
	"wcl_check/share"
	"wcl_check/share/semaphore"
	"wcl_check/wcl/oauth"

	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	apiURL     = "https://www.warcraftlogs.com/api/v2/client"
	maxRetries = 3
	retryDelay = 3 * time.Second
)

// Client posts GraphQL queries to the Warcraft Logs v2 API with a shared
// concurrency cap and transient-error retry.
type Client struct {
	oauth *oauth.Client
	sema  *semaphore.Semaphore
}

func NewClient(clientID string, clientSecret string, concurrency int) *Client {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Client{
		oauth: oauth.New(clientID, clientSecret),
		sema:  semaphore.New(concurrency),
	}
}

func (c *Client) callGraphQL(ctx context.Context, name string, tmpl *template.Template, tmplData interface{}, respData interface{}) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = c.callGraphQLInner(ctx, name, tmpl, tmplData, respData)

		if err == nil {
			break
		}
		if share.IsContextClosedError(err) {
			return err
		}
		var te *analysis.TokenError
		if errors.As(err, &te) {
			return err
		}
		if i+1 < maxRetries {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
		}
	}
	return err
}

func (c *Client) callGraphQLInner(ctx context.Context, name string, tmpl *template.Template, tmplData interface{}, respData interface{}) error {
	sb := strBufPool.Get().(*strings.Builder)
	defer strBufPool.Put(sb)

	sb.Reset()
	err := tmpl.Execute(sb, tmplData)
	if err != nil {
		sentry.CaptureException(err)
		return errors.WithStack(err)
	}

	queryData := struct {
		Query string `json:"query"`
	}{
		Query: sb.String(),
	}

	buf := bytBufPool.Get().(*bytes.Buffer)
	defer bytBufPool.Put(buf)

	buf.Reset()
	err = jsoniter.NewEncoder(buf).Encode(&queryData)
	if err != nil {
		sentry.CaptureException(err)
		return errors.WithStack(err)
	}

	req, err := c.oauth.NewRequest(ctx, "POST", apiURL, buf)
	if err != nil {
		return err
	}

	c.sema.Acquire()
	defer c.sema.Release()

	metrics.GraphQLCalls.WithLabelValues(name).Inc()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if !share.IsContextClosedError(err) {
			sentry.CaptureException(err)
			metrics.GraphQLErrors.WithLabelValues(name).Inc()
		}
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.oauth.Reset()
		metrics.GraphQLErrors.WithLabelValues(name).Inc()
		return &analysis.TokenError{Reason: "api rejected the bearer token"}
	}
	if resp.StatusCode != http.StatusOK {
		metrics.GraphQLErrors.WithLabelValues(name).Inc()
		return errors.Errorf("%s: unexpected status %d", name, resp.StatusCode)
	}

	err = jsoniter.NewDecoder(resp.Body).Decode(respData)
	if err != nil && err != io.EOF {
		sentry.CaptureException(err)
		metrics.GraphQLErrors.WithLabelValues(name).Inc()
		return errors.WithStack(err)
	}

	return nil
}

func graphQLErrorsOf(name string, errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return errors.Errorf("%s: %s", name, strings.Join(msgs, "; "))
}
