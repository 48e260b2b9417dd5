package network

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// Client wraps resty with retry support for capability requests.
type Client struct {
	resty   *resty.Client
	webhook *retryablehttp.Client
}

// NewClient creates the outbound HTTP client pair: a resty client for
// generic requests and a retryable client for webhook delivery.
func NewClient(timeout time.Duration) *Client {
	restyClient := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "isolate-orchestrator/1.0")

	webhookClient := retryablehttp.NewClient()
	webhookClient.RetryMax = 2
	webhookClient.RetryWaitMin = 500 * time.Millisecond
	webhookClient.RetryWaitMax = 5 * time.Second
	webhookClient.HTTPClient.Timeout = timeout
	webhookClient.Logger = nil // quiet; the handler logs outcomes

	return &Client{resty: restyClient, webhook: webhookClient}
}
