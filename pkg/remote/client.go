package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/nordlicht-labs/corpusgraph/internal/util"
	"github.com/nordlicht-labs/corpusgraph/pkg/logger"
)

// tokenExpirySkew is subtracted from the token lifetime so refresh happens
// before the repository starts rejecting the token.
const tokenExpirySkew = 60 * time.Second

// Client is the authenticated HTTP client for the document repository.
//
// The client exclusively owns the current bearer token and its expiry; no
// other component reads or caches it. The token is obtained lazily, refreshed
// proactively near expiry, and refreshed exactly once more when the
// repository reports it invalid mid-call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authHeader string

	clientID     string
	clientSecret string
	unionID      string

	maxRetries      int
	retryBase       time.Duration
	retryCap        time.Duration
	metadataTimeout time.Duration
	downloadTimeout time.Duration

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	previewGroup singleflight.Group
	previewMu    sync.RWMutex
	previewURLs  map[string]string
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	UnionID      string
	AuthHeader   string

	MaxRetries      int
	RetryBase       time.Duration
	RetryCap        time.Duration
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
}

// NewClient creates a repository client. Zero-valued tunables fall back to
// the defaults the pipeline ships with (3 attempts, 1 s base / 10 s cap
// backoff, 30 s metadata and 60 s download timeouts).
func NewClient(params NewClientParams) *Client {
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := params.RetryBase
	if retryBase <= 0 {
		retryBase = time.Second
	}
	retryCap := params.RetryCap
	if retryCap <= 0 {
		retryCap = 10 * time.Second
	}
	metadataTimeout := params.MetadataTimeout
	if metadataTimeout <= 0 {
		metadataTimeout = 30 * time.Second
	}
	downloadTimeout := params.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 60 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{},
		baseURL:      params.BaseURL,
		authHeader:   params.AuthHeader,
		clientID:     params.ClientID,
		clientSecret: params.ClientSecret,
		unionID:      params.UnionID,

		maxRetries:      maxRetries,
		retryBase:       retryBase,
		retryCap:        retryCap,
		metadataTimeout: metadataTimeout,
		downloadTimeout: downloadTimeout,

		previewURLs: make(map[string]string),
	}
}

// Authenticate obtains a fresh bearer token from the repository and stores it
// with its expiry. It returns ErrAuth when the credentials are rejected.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body := map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	if c.unionID != "" {
		body["union_id"] = c.unionID
	}

	var resp tokenResponse
	err := c.sendJSON(ctx, http.MethodPost, "/auth/token", nil, "", body, &resp, c.metadataTimeout)
	if err != nil {
		// The token request carries no bearer token, so a token-invalid
		// response here is the credentials themselves being refused.
		if isTokenInvalid(err) || isStatusError(err, http.StatusForbidden) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrAuth)
	}

	expiry := tokenExpiryOf(resp)

	c.tokenMu.Lock()
	c.token = resp.AccessToken
	c.tokenExpiry = expiry
	c.tokenMu.Unlock()

	logger.Debug("Obtained repository token", "expires", expiry.Format(time.RFC3339))

	return resp.AccessToken, nil
}

// tokenExpiryOf derives the token expiry, preferring the exp claim when the
// bearer is a JWT over the TTL reported next to it.
func tokenExpiryOf(resp tokenResponse) time.Time {
	parser := jwt.NewParser()
	if token, _, err := parser.ParseUnverified(resp.AccessToken, jwt.MapClaims{}); err == nil {
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-tokenExpirySkew)
		}
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return time.Now().Add(ttl - tokenExpirySkew)
}

// currentToken returns a valid bearer token, authenticating lazily or when
// the cached token is near expiry.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	token := c.token
	valid := token != "" && time.Now().Before(c.tokenExpiry)
	c.tokenMu.Unlock()

	if valid {
		return token, nil
	}
	return c.Authenticate(ctx)
}

// invalidate drops the cached token if it is still the one that was refused.
func (c *Client) invalidate(refused string) {
	c.tokenMu.Lock()
	if c.token == refused {
		c.token = ""
		c.tokenExpiry = time.Time{}
	}
	c.tokenMu.Unlock()
}

// ListChildren lists all entries of a folder, following pagination until the
// listing is exhausted.
func (c *Client) ListChildren(ctx context.Context, folderID string, pageSize int, order string) ([]Entry, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	entries := []Entry{}
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(pageSize))
		if order != "" {
			query.Set("order", order)
		}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var page listChildrenResponse
		path := fmt.Sprintf("/folders/%s/children", url.PathEscape(folderID))
		if err := c.call(ctx, http.MethodGet, path, query, nil, &page, c.metadataTimeout); err != nil {
			return nil, err
		}

		entries = append(entries, page.Entries...)
		if page.NextPageToken == "" {
			return entries, nil
		}
		pageToken = page.NextPageToken
	}
}

// GetDownloadURL issues a short-lived signed download URL for a file.
func (c *Client) GetDownloadURL(ctx context.Context, fileID string, ttlSeconds int) (string, error) {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}

	var resp urlResponse
	path := fmt.Sprintf("/files/%s/download_url", url.PathEscape(fileID))
	body := map[string]int{"ttl_seconds": ttlSeconds}
	if err := c.call(ctx, http.MethodPost, path, nil, body, &resp, c.metadataTimeout); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// GetPreviewURL issues a preview URL for a file. Issued URLs are cached and
// concurrent requests for the same file are collapsed.
func (c *Client) GetPreviewURL(ctx context.Context, fileID string) (string, error) {
	c.previewMu.RLock()
	if cached, ok := c.previewURLs[fileID]; ok {
		c.previewMu.RUnlock()
		return cached, nil
	}
	c.previewMu.RUnlock()

	result, err, _ := c.previewGroup.Do(fileID, func() (any, error) {
		var resp urlResponse
		path := fmt.Sprintf("/files/%s/preview_url", url.PathEscape(fileID))
		if err := c.call(ctx, http.MethodGet, path, nil, nil, &resp, c.metadataTimeout); err != nil {
			return "", err
		}

		c.previewMu.Lock()
		c.previewURLs[fileID] = resp.URL
		c.previewMu.Unlock()

		return resp.URL, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// DownloadBytes downloads the body of a file.
func (c *Client) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	path := fmt.Sprintf("/files/%s/content", url.PathEscape(fileID))
	return util.RetryBackoffWithContext(ctx, c.maxRetries, c.retryBase, c.retryCap, isRetriable,
		func(ctx context.Context) ([]byte, error) {
			return c.downloadOnce(ctx, path)
		})
}

func (c *Client) downloadOnce(ctx context.Context, path string) ([]byte, error) {
	body, err := c.fetchRaw(ctx, path)
	if err == nil || !isTokenInvalid(err) {
		return body, err
	}

	// Token refused mid-download: refresh once and retry the original call.
	if _, authErr := c.Authenticate(ctx); authErr != nil {
		return nil, authErr
	}
	body, err = c.fetchRaw(ctx, path)
	if isTokenInvalid(err) {
		return nil, fmt.Errorf("%w: token refused after refresh", ErrAuth)
	}
	return body, err
}

func (c *Client) fetchRaw(ctx context.Context, path string) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.authHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := categorizeStatus(resp.StatusCode, body)
		if isTokenInvalid(err) {
			c.invalidate(token)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	return body, nil
}

// call performs an authenticated JSON API call with transport retries and the
// single-refresh token discipline.
func (c *Client) call(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
	out any,
	timeout time.Duration,
) error {
	_, err := util.RetryBackoffWithContext(ctx, c.maxRetries, c.retryBase, c.retryCap, isRetriable,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.callOnce(ctx, method, path, query, body, out, timeout)
		})
	return err
}

func (c *Client) callOnce(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
	out any,
	timeout time.Duration,
) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}

	err = c.sendJSON(ctx, method, path, query, token, body, out, timeout)
	if err == nil || !isTokenInvalid(err) {
		return err
	}

	c.invalidate(token)
	token, authErr := c.Authenticate(ctx)
	if authErr != nil {
		return authErr
	}

	err = c.sendJSON(ctx, method, path, query, token, body, out, timeout)
	if isTokenInvalid(err) {
		return fmt.Errorf("%w: token refused after refresh", ErrAuth)
	}
	return err
}

// sendJSON performs one HTTP round trip with a JSON body and decodes the JSON
// response into out. It categorizes failures into the error kinds the retry
// and token logic act on.
func (c *Client) sendJSON(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	token string,
	body any,
	out any,
	timeout time.Duration,
) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(c.authHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Per-call timeouts and connection failures are transport errors.
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return categorizeStatus(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("remote: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// categorizeStatus maps a non-200 response to an error kind. Token rejection
// is recognized from the body code, not only the 401 status.
func categorizeStatus(status int, body []byte) error {
	var detail apiError
	_ = json.Unmarshal(body, &detail)

	if _, ok := tokenInvalidCodes[detail.Code]; ok || status == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d code %q", errTokenInvalid, status, detail.Code)
	}
	if status >= 500 {
		return fmt.Errorf("%w: status %d: %s", ErrTransport, status, detail.Message)
	}
	return &StatusError{Status: status, Code: detail.Code, Message: detail.Message}
}

// StatusError is a non-retriable API rejection (4xx other than auth).
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d code %q: %s", e.Status, e.Code, e.Message)
}

func isStatusError(err error, status int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == status
	}
	return false
}

func isRetriable(err error) bool {
	return errors.Is(err, ErrTransport)
}

func isTokenInvalid(err error) bool {
	return errors.Is(err, errTokenInvalid)
}
