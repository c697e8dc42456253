package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service"
)

// ProductsProvider searches a remote catalogue for the products matching a query.
// Implementations translate the query to the provider's own API and normalize
// the results to common.Product.
type ProductsProvider interface {
	Name() string
	SearchProducts(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error)
}

// RateLimitError is returned when the catalogue throttles the client.
// It is temporary: the search can be retried after RetryAfter.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %v)", e.Provider, e.RetryAfter)
}

func (e RateLimitError) Temporary() bool { return true }

// RetryDelay is honored by service.Retriable in place of its default delay
func (e RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

// QueryRejectedError is returned when the catalogue refuses the query itself,
// e.g. an unsupported filter. Retrying the same query is pointless.
type QueryRejectedError struct {
	Provider string
	Reason   string
}

func (e QueryRejectedError) Error() string {
	return fmt.Sprintf("%s: query rejected: %s", e.Provider, e.Reason)
}

// GetBody performs a GET and classifies the status: 429 is a RateLimitError,
// 400 a QueryRejectedError, 408 and 5xx are temporary.
func GetBody(ctx context.Context, provider, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == 200:
		return body, nil
	case resp.StatusCode == 429:
		return nil, RateLimitError{Provider: provider, RetryAfter: retryAfter(resp)}
	case resp.StatusCode == 400:
		return nil, QueryRejectedError{Provider: provider, Reason: string(body)}
	case resp.StatusCode == 408 || resp.StatusCode >= 500:
		return nil, service.MakeTemporary(fmt.Errorf("%s: %s", resp.Status, body))
	}
	return nil, fmt.Errorf("%s: %s", resp.Status, body)
}

func retryAfter(resp *http.Response) time.Duration {
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		return time.Duration(s) * time.Second
	}
	return time.Second
}
