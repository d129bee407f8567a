// Package ollama implements ai.Client against a locally-hosted Ollama
// server.
package ollama

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultTimeout = 300 * time.Second

// Client implements the ai.Client interface using Ollama as the backend.
// It uses the chat model for text capsules and classification and the
// image model for vision capsules.
type Client struct {
	chatModel  string
	imageModel string

	timeout time.Duration
	reqLock *semaphore.Weighted

	client *api.Client
}

// NewClientParams contains configuration options for creating a new Client.
type NewClientParams struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	ImageModel string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient connects to the Ollama server at the given BaseURL (or the
// default if empty) and uses the configured models.
func NewClient(params NewClientParams) (*Client, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.APIKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}
	if params.Timeout <= 0 {
		params.Timeout = defaultTimeout
	}
	if params.ImageModel == "" {
		params.ImageModel = params.ChatModel
	}

	return &Client{
		chatModel:  params.ChatModel,
		imageModel: params.ImageModel,

		timeout: params.Timeout,
		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		client: api.NewClient(u, httpClient),
	}, nil
}
