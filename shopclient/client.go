// Package shopclient fetches and classifies shop product listings.
package shopclient

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/idealinvestse/shoppi-shop-finder/config"
	"github.com/idealinvestse/shoppi-shop-finder/models"
)

const captureKey = "capture"

// capture collects the outcome of one request via the collector callbacks.
type capture struct {
	statusCode int
	body       []byte
}

// Client issues one GET per shop through a shared colly collector. The
// collector's limit rule enforces the parallelism bound and the
// inter-request pacing delay; its transport caps and recycles connections.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
}

// New builds a client configured from cfg.
func New(cfg *config.Config) (*Client, error) {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     cfg.MaxConcurrent,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.MaxConcurrent,
		Delay:       cfg.RateLimit,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	collector.OnResponse(func(r *colly.Response) {
		if cap, ok := r.Ctx.GetAny(captureKey).(*capture); ok {
			cap.statusCode = r.StatusCode
			cap.body = r.Body
		}
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r == nil {
			return
		}
		if cap, ok := r.Ctx.GetAny(captureKey).(*capture); ok {
			cap.statusCode = r.StatusCode
		}
	})

	return &Client{
		cfg:       cfg,
		collector: collector,
	}, nil
}

// WithTransport swaps the underlying round tripper. Used by tests to inject
// a mock transport.
func (cl *Client) WithTransport(rt http.RoundTripper) {
	cl.collector.WithTransport(rt)
}

// Fetch issues one GET for a shop and returns its raw product records.
// Outcomes map onto the package error taxonomy: ErrNotFound for absent
// shops, ErrTimeout/ErrConnection/ErrServer for transient failures, and
// ErrMalformed for unparseable payloads.
func (cl *Client) Fetch(shop string) ([]models.RawProduct, error) {
	cap := &capture{}
	ctx := colly.NewContext()
	ctx.Put(captureKey, cap)

	err := cl.collector.Request(http.MethodGet, cl.cfg.ShopURL(shop), nil, ctx, nil)
	if err != nil {
		return nil, Classify(shop, err, cap.statusCode)
	}

	var payload struct {
		Products []models.RawProduct `json:"products"`
	}
	if err := json.Unmarshal(cap.body, &payload); err != nil {
		return nil, ErrMalformed{Err: err}
	}
	return payload.Products, nil
}
