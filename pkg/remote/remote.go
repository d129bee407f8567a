package remote

import (
	"errors"
)

// ErrAuth marks credential rejection: the repository refused the configured
// client credentials, or refused a token that one refresh could not repair.
// It is fatal for a run.
var ErrAuth = errors.New("remote: authentication rejected")

// ErrTransport marks retriable network failures: connection errors, 5xx
// responses and per-call timeouts. Callers retry these with backoff.
var ErrTransport = errors.New("remote: transport error")

// errTokenInvalid is the internal category for "the bearer token was refused".
// It is detected from the response body code, not only the HTTP status, and
// triggers exactly one refresh-and-retry before escalating to ErrAuth.
var errTokenInvalid = errors.New("remote: token invalid")

// EntryType distinguishes files from folders in a directory listing.
type EntryType string

const (
	EntryTypeFile   EntryType = "FILE"
	EntryTypeFolder EntryType = "FOLDER"
)

// Entry is one child of a remote folder.
type Entry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         EntryType `json:"type"`
	Size         int64     `json:"size"`
	Extension    string    `json:"extension"`
	ModifiedTime string    `json:"modified_time"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type listChildrenResponse struct {
	Entries       []Entry `json:"entries"`
	NextPageToken string  `json:"next_page_token"`
}

type urlResponse struct {
	URL string `json:"url"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// tokenInvalidCodes are the body codes the repository uses for a refused
// bearer token.
var tokenInvalidCodes = map[string]struct{}{
	"InvalidAuthentication": {},
	"InvalidAccessToken":    {},
	"TokenExpired":          {},
	"invalid_token":         {},
}
