// Package sdk is a Go client for the cluster API.
//
// The client sends the caller identity and the requested microversion with
// every request and fails over between API endpoints when one is unreachable.
package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"resty.dev/v3"

	"github.com/yaroslav/clusterplane/models"
)

// Header names understood by the API.
const (
	HeaderAPIVersion = "OpenStack-API-Version"
	HeaderProjectID  = "X-Project-Id"
	HeaderUserID     = "X-User-Id"
	HeaderDomainID   = "X-Domain-Id"
	HeaderRoles      = "X-Roles"
	HeaderRequestID  = "X-Openstack-Request-Id"
)

const serviceName = "container-infra"

// Client talks to one or more instances of the cluster API.
type Client struct {
	baseURLs []string
	http     *resty.Client

	mu        sync.RWMutex
	preferred int
}

// NewClient creates a client from config.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	hc := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryAttempts).
		SetRetryWaitTime(config.RetryWaitMin).
		SetRetryMaxWaitTime(config.RetryWaitMax).
		SetHeader("Accept", "application/json").
		SetHeader(HeaderAPIVersion, serviceName+" "+config.APIVersion).
		SetHeader(HeaderProjectID, config.ProjectID)
	if config.UserID != "" {
		hc.SetHeader(HeaderUserID, config.UserID)
	}
	if config.DomainID != "" {
		hc.SetHeader(HeaderDomainID, config.DomainID)
	}
	if len(config.Roles) > 0 {
		hc.SetHeader(HeaderRoles, strings.Join(config.Roles, ","))
	}

	return &Client{
		baseURLs: append([]string(nil), config.BaseURLs...),
		http:     hc,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// orderedURLs returns the base URLs starting with the last one that answered.
func (c *Client) orderedURLs() []string {
	c.mu.RLock()
	start := c.preferred
	c.mu.RUnlock()

	urls := make([]string, 0, len(c.baseURLs))
	for i := range c.baseURLs {
		urls = append(urls, c.baseURLs[(start+i)%len(c.baseURLs)])
	}
	return urls
}

func (c *Client) setPreferred(base string) {
	for i, u := range c.baseURLs {
		if u == base {
			c.mu.Lock()
			c.preferred = i
			c.mu.Unlock()
			return
		}
	}
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  map[string]string
	body   interface{}
	result interface{}
}

// do sends req to the first reachable instance and decodes the answer.
// Transport errors move on to the next instance; HTTP errors do not.
func (c *Client) do(ctx context.Context, req request) error {
	var lastErr error
	for _, base := range c.orderedURLs() {
		r := c.http.R().SetContext(ctx)
		if req.query != nil {
			r.SetQueryParams(req.query)
		}
		if req.body != nil {
			r.SetHeader("Content-Type", "application/json").SetBody(req.body)
		}
		if req.result != nil {
			r.SetResult(req.result)
		}
		errBody := &models.ErrorResponse{}
		r.SetError(errBody)

		resp, err := r.Execute(req.method, base+req.path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		c.setPreferred(base)
		if resp.IsError() {
			return newAPIError(resp, errBody)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAllInstancesFailed, lastErr)
}

// newAPIError builds an APIError from the status and the decoded error body.
func newAPIError(resp *resty.Response, body *models.ErrorResponse) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Code:       body.Error,
		Message:    body.Message,
		RequestID:  body.RequestID,
	}
	if apiErr.RequestID == "" {
		apiErr.RequestID = resp.Header().Get(HeaderRequestID)
	}
	return apiErr
}

// ListOptions controls pagination and ordering of cluster lists.
type ListOptions struct {
	Limit   int
	Marker  string
	SortKey string
	SortDir string
}

func (o ListOptions) values() map[string]string {
	q := map[string]string{}
	if o.Limit > 0 {
		q["limit"] = strconv.Itoa(o.Limit)
	}
	if o.Marker != "" {
		q["marker"] = o.Marker
	}
	if o.SortKey != "" {
		q["sort_key"] = o.SortKey
	}
	if o.SortDir != "" {
		q["sort_dir"] = o.SortDir
	}
	return q
}

// ClusterList is one page of cluster summaries.
type ClusterList struct {
	Clusters []models.ClusterSummary `json:"clusters"`
	Next     string                  `json:"next,omitempty"`
}

// ClusterDetailList is one page of full cluster views.
type ClusterDetailList struct {
	Clusters []models.ClusterView `json:"clusters"`
	Next     string               `json:"next,omitempty"`
}

// ListClusters returns one page of clusters visible to the project.
func (c *Client) ListClusters(ctx context.Context, opts ListOptions) (*ClusterList, error) {
	var page ClusterList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/clusters", query: opts.values(), result: &page}); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return &page, nil
}

// ListClustersDetail returns one page of clusters in the full view.
func (c *Client) ListClustersDetail(ctx context.Context, opts ListOptions) (*ClusterDetailList, error) {
	var page ClusterDetailList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/clusters/detail", query: opts.values(), result: &page}); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return &page, nil
}

// ListAllClusters follows next links until the last page.
func (c *Client) ListAllClusters(ctx context.Context, opts ListOptions) ([]models.ClusterSummary, error) {
	var all []models.ClusterSummary
	for {
		page, err := c.ListClusters(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Clusters...)
		if page.Next == "" {
			return all, nil
		}

		marker, err := nextMarker(page.Next)
		if err != nil {
			return nil, err
		}
		if marker == "" || marker == opts.Marker {
			return all, nil
		}
		opts.Marker = marker
	}
}

func nextMarker(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", next, err)
	}
	return u.Query().Get("marker"), nil
}

// GetCluster returns a cluster by uuid or name.
func (c *Client) GetCluster(ctx context.Context, ident string) (*models.ClusterView, error) {
	var view models.ClusterView
	if err := c.do(ctx, request{method: http.MethodGet, path: clusterPath(ident), result: &view}); err != nil {
		return nil, fmt.Errorf("failed to get cluster %s: %w", ident, err)
	}
	return &view, nil
}

// CreateCluster requests a new cluster and returns its uuid. The cluster is
// created asynchronously.
func (c *Client) CreateCluster(ctx context.Context, req *models.ClusterCreateRequest) (string, error) {
	var id models.ClusterID
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/clusters", body: req, result: &id}); err != nil {
		return "", fmt.Errorf("failed to create cluster: %w", err)
	}
	return id.UUID, nil
}

// UpdateOptions are the query options of a cluster update.
type UpdateOptions struct {
	// Rollback asks the backend to roll back a failed update. Ignored
	// below microversion 1.3.
	Rollback bool
}

// UpdateCluster applies a JSON patch to a cluster and returns its uuid.
func (c *Client) UpdateCluster(ctx context.Context, ident string, ops []PatchOp, opts UpdateOptions) (string, error) {
	var q map[string]string
	if opts.Rollback {
		q = map[string]string{"rollback": "true"}
	}

	var id models.ClusterID
	if err := c.do(ctx, request{method: http.MethodPatch, path: clusterPath(ident), query: q, body: ops, result: &id}); err != nil {
		return "", fmt.Errorf("failed to update cluster %s: %w", ident, err)
	}
	return id.UUID, nil
}

// DeleteCluster requests deletion of a cluster.
func (c *Client) DeleteCluster(ctx context.Context, ident string) error {
	if err := c.do(ctx, request{method: http.MethodDelete, path: clusterPath(ident)}); err != nil {
		return fmt.Errorf("failed to delete cluster %s: %w", ident, err)
	}
	return nil
}

// VersionInfo describes a major API version and its microversion range.
type VersionInfo struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	MinVersion string `json:"min_version"`
	MaxVersion string `json:"max_version"`
}

// Versions returns the API versions advertised by the server.
func (c *Client) Versions(ctx context.Context) ([]VersionInfo, error) {
	var doc struct {
		Versions []VersionInfo `json:"versions"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/", result: &doc}); err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}
	return doc.Versions, nil
}

func clusterPath(ident string) string {
	return "/v1/clusters/" + url.PathEscape(ident)
}

// PatchOp is one JSON patch operation.
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Replace builds a replace operation.
func Replace(path string, value interface{}) (PatchOp, error) {
	return valueOp("replace", path, value)
}

// Add builds an add operation.
func Add(path string, value interface{}) (PatchOp, error) {
	return valueOp("add", path, value)
}

// Remove builds a remove operation.
func Remove(path string) PatchOp {
	return PatchOp{Op: "remove", Path: path}
}

func valueOp(op, path string, value interface{}) (PatchOp, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return PatchOp{}, fmt.Errorf("failed to encode value for %s: %w", path, err)
	}
	return PatchOp{Op: op, Path: path, Value: raw}, nil
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
