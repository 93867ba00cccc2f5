package volt

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets explicit credentials. Explicit values take precedence
// over every [CredentialSource]; empty fields are still filled from sources.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.explicit = &creds
	}
}

// WithAPIKey sets the API key explicitly.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if c.explicit == nil {
			c.explicit = &Credentials{}
		}
		c.explicit.APIKey = key
	}
}

// WithBaseURL sets the API base URL explicitly.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if c.explicit == nil {
			c.explicit = &Credentials{}
		}
		c.explicit.BaseURL = baseURL
	}
}

// WithCredentialSources replaces the default lookup chain. Passing no
// sources disables environment and file lookup entirely.
func WithCredentialSources(sources ...CredentialSource) Option {
	return func(c *Client) {
		c.sources = sources
		c.sourcesSet = true
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets the maximum number of retries for retryable failures.
// Zero disables retries.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryWait sets the base and maximum backoff between retries.
func WithRetryWait(base, max time.Duration) Option {
	return func(c *Client) {
		c.retryWaitMin = base
		c.retryWaitMax = max
	}
}

// WithHTTPClient sets a custom HTTP client. The client is copied; its
// Timeout is overridden by [WithTimeout].
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithPageSize sets the page size requested from list endpoints.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithMaxPages bounds the number of pages a single list call will fetch.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics registers request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// WithEventPublisher receives every pod status change observed while waiting.
func WithEventPublisher(p EventPublisher) Option {
	return func(c *Client) {
		c.publisher = p
	}
}
