package volt

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 2
	defaultRetryWaitMin = 1 * time.Second
	defaultRetryWaitMax = 30 * time.Second
	defaultPageSize     = 50
	defaultMaxPages     = 1000
)

const tracerName = "github.com/voltagegpu/volt-go"

// Client is the VoltageGPU API client.
//
// Credentials are resolved once in [NewClient] and never change; build a new
// client to pick up a rotated key. A Client holds no per-resource caches and
// is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	timeout      time.Duration
	maxRetries   int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	userAgent    string
	pageSize     int
	maxPages     int

	explicit   *Credentials
	sources    []CredentialSource
	sourcesSet bool

	logger         *zap.Logger
	registerer     prometheus.Registerer
	metrics        *metrics
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	publisher      EventPublisher

	versionOnce sync.Once
}

// NewClient creates a new VoltageGPU client.
//
// Without options the API key is looked up in VOLT_API_KEY (or the legacy
// LIUM_API_KEY) and then ~/.volt/config.yaml. A CONFIGURATION error is
// returned when no key is found.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient:   http.DefaultClient,
		timeout:      defaultTimeout,
		maxRetries:   defaultMaxRetries,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
		userAgent:    "volt-go/" + Version,
		pageSize:     defaultPageSize,
		maxPages:     defaultMaxPages,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	sources := c.sources
	if !c.sourcesSet {
		sources = DefaultCredentialSources()
	}
	creds, err := ResolveCredentials(c.explicit, sources...)
	if err != nil {
		return nil, err
	}
	c.apiKey = creds.APIKey
	c.baseURL = creds.BaseURL
	c.explicit = nil

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	if c.registerer != nil {
		c.metrics = newMetrics(c.registerer)
	}

	hc := *c.httpClient
	hc.Timeout = c.timeout
	c.httpClient = &hc

	c.logger.Debug("volt client ready",
		zap.String("base_url", c.baseURL),
		zap.Duration("timeout", c.timeout),
		zap.Int("max_retries", c.maxRetries))

	return c, nil
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the client. The client must not
// be used afterwards.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
