// Package openai implements ai.Client on top of any OpenAI-compatible
// chat completion endpoint.
package openai

import (
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

const defaultTimeout = 120 * time.Second

// Client talks to an OpenAI-compatible API. It uses the chat model for text
// capsules and classification and the image model for vision capsules.
//
// A Client should be created using NewClient.
type Client struct {
	chatModel  string
	imageModel string

	timeout time.Duration
	reqLock *semaphore.Weighted

	chat *openai.Client
}

// NewClientParams defines the configuration for creating a new Client.
//
// BaseURL and APIKey configure the endpoint. ChatModel handles text capsules
// and classification; ImageModel handles vision capsules and may equal
// ChatModel for multimodal deployments. MaxConcurrentRequests bounds
// in-flight model calls.
type NewClientParams struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	ImageModel string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// NewClient creates a Client configured with the provided parameters.
func NewClient(params NewClientParams) *Client {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	chat := openai.NewClient(options...)

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 4
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

		chat: &chat,
	}
}
