// Package remote talks to the custom-types HTTP API and the asset ACL
// provider on behalf of one repository at a time.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultCustomTypesURL is the public custom-types API endpoint.
	DefaultCustomTypesURL = "https://customtypes.prismic.io"
	// DefaultACLProviderURL is the public asset ACL provider endpoint.
	DefaultACLProviderURL = "https://acl-provider.prismic.io"

	maxResponseBytes = 64 << 20
	maxErrorBytes    = 4 << 10
)

// TokenFunc returns the bearer token for the next request.
type TokenFunc func(ctx context.Context) (string, error)

// Options configures a Client.
type Options struct {
	CustomTypesURL string
	ACLProviderURL string
	Token          TokenFunc
	UserAgent      string
	// Timeout bounds each request; zero means no limit.
	Timeout    time.Duration
	Conflict   schema.ConflictPolicy
	HTTPClient *http.Client
	Logger     pslog.Logger
}

// Client holds the shared transport. Requests are issued through a Repository.
type Client struct {
	customTypes *url.URL
	aclProvider *url.URL
	token       TokenFunc
	userAgent   string
	timeout     time.Duration
	conflict    schema.ConflictPolicy
	http        *http.Client
	log         pslog.Logger
}

// New validates options and returns a client.
func New(opts Options) (*Client, error) {
	if opts.Token == nil {
		return nil, errors.New("remote client requires a token source")
	}
	customTypes, err := parseBaseURL(opts.CustomTypesURL, DefaultCustomTypesURL)
	if err != nil {
		return nil, fmt.Errorf("custom types url: %w", err)
	}
	aclProvider, err := parseBaseURL(opts.ACLProviderURL, DefaultACLProviderURL)
	if err != nil {
		return nil, fmt.Errorf("acl provider url: %w", err)
	}
	conflict, err := schema.ParseConflictPolicy(string(opts.Conflict))
	if err != nil {
		return nil, err
	}
	if opts.Timeout < 0 {
		return nil, errors.New("remote timeout must not be negative")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "modelsync"
	}
	return &Client{
		customTypes: customTypes,
		aclProvider: aclProvider,
		token:       opts.Token,
		userAgent:   userAgent,
		timeout:     opts.Timeout,
		conflict:    conflict,
		http:        httpClient,
		log:         opts.Logger,
	}, nil
}

// Open returns a handle bound to repo. Every call made through the handle
// addresses that repository and no other.
func (c *Client) Open(repo schema.RepoName) (*Repository, error) {
	if c == nil {
		return nil, errors.New("remote client not initialized")
	}
	name, err := schema.NormalizeRepoName(string(repo))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, repo)
	}
	return &Repository{client: c, repo: name}, nil
}

func parseBaseURL(raw, fallback string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing host in %q", value)
	}
	return parsed, nil
}

type request struct {
	op     string
	repo   schema.RepoName
	base   *url.URL
	method string
	path   string
	body   []byte
}

// do issues one request and returns the response body of a 2xx response.
// Any other outcome is an *APIError.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	log := c.logger(ctx)
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	target := *req.base
	target.Path = path.Join("/", strings.TrimPrefix(target.Path, "/"), req.path)
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.op, err)
	}
	httpReq.Header.Set("repository", string(req.repo))
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		log.Debug("remote request failed", "op", req.op, "repo", req.repo, "err", err, "duration_ms", time.Since(started).Milliseconds())
		return nil, &APIError{Op: req.op, Repo: req.repo, Message: err.Error(), err: err}
	}
	defer res.Body.Close()
	log.Trace("remote request", "op", req.op, "repo", req.repo, "status", res.StatusCode, "duration_ms", time.Since(started).Milliseconds())
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, readAPIError(req, res)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Op: req.op, Repo: req.repo, Status: res.StatusCode, Message: err.Error(), err: err}
	}
	return data, nil
}

func readAPIError(req request, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = res.Status
	}
	return &APIError{Op: req.op, Repo: req.repo, Status: res.StatusCode, Message: msg}
}

func (c *Client) logger(ctx context.Context) pslog.Logger {
	if c.log != nil {
		return c.log
	}
	return pslog.Ctx(ctx)
}
