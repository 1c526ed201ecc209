package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/labelreader/labelreader/pkg/types"
)

// Fetch error kinds. The sync coordinator's fallback behavior differs by
// cause, so callers match with errors.Is.
var (
	ErrUnreachable  = errors.New("remote unreachable")
	ErrUnauthorized = errors.New("remote rejected credentials")
	ErrMalformed    = errors.New("malformed remote response")
)

const (
	// DefaultBatchSize is the page size for bulk downloads.
	DefaultBatchSize = 1000
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	productsTable       = "products"
	secondaryCodesTable = "secondary_codes"
	versionTable        = "version_control"
)

// Progress reports cumulative download progress. Total is a best-effort
// estimate until the terminal page is seen.
type Progress struct {
	Loaded int
	Total  int
}

// ProgressFunc receives a Progress after every downloaded page.
type ProgressFunc func(Progress)

// Client reads the authoritative catalog over a PostgREST-style row API:
// paginated range reads over the product and alias tables, plus the single
// most-recent version record.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	batchSize int
	hc        *http.Client
	retry     RetryConfig
	log       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBatchSize overrides the download page size.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a catalog client for the given endpoint and API key.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:   u,
		apiKey:    apiKey,
		batchSize: DefaultBatchSize,
		hc:        &http.Client{Timeout: DefaultTimeout},
		retry:     DefaultRetryConfig(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping issues a one-row read against the product table to verify the
// endpoint and credentials before a sync pass.
func (c *Client) Ping(ctx context.Context) error {
	var rows []productRow
	params := url.Values{}
	params.Set("select", "code")
	params.Set("limit", "1")
	return c.getJSON(ctx, productsTable, params, &rows)
}

// FetchVersion reads the most recently updated version record. It returns
// (nil, nil) when the remote has no version record at all, which is distinct
// from a fetch failure.
func (c *Client) FetchVersion(ctx context.Context) (*types.VersionInfo, error) {
	var rows []versionRow
	params := url.Values{}
	params.Set("select", "version_hash,updated_at")
	params.Set("order", "updated_at.desc")
	params.Set("limit", "1")

	if err := c.getJSON(ctx, versionTable, params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if rows[0].VersionHash == "" {
		return nil, fmt.Errorf("%w: version record missing version_hash", ErrMalformed)
	}
	return &types.VersionInfo{Hash: rows[0].VersionHash, UpdatedAt: rows[0].UpdatedAt}, nil
}

// DownloadProducts pages through the remote product table in ascending
// primary-code order and returns the composed list. onProgress, when
// non-nil, is invoked after every page.
func (c *Client) DownloadProducts(ctx context.Context, onProgress ProgressFunc) ([]types.Product, error) {
	products := make([]types.Product, 0, c.batchSize)
	lastCode := ""

	for offset := 0; ; offset += c.batchSize {
		var rows []productRow
		if err := c.getPage(ctx, productsTable, "code,description,unit_price,category,secondary_code", "code.asc", offset, &rows); err != nil {
			return nil, err
		}
		if len(rows) > c.batchSize {
			return nil, fmt.Errorf("%w: page larger than requested batch (%d > %d)", ErrMalformed, len(rows), c.batchSize)
		}

		for i := range rows {
			p, err := rows[i].toProduct()
			if err != nil {
				return nil, fmt.Errorf("%w: product row %d: %v", ErrMalformed, offset+i, err)
			}
			// Pages must compose in order and without gaps.
			if lastCode != "" && p.Code <= lastCode {
				return nil, fmt.Errorf("%w: product page out of order at %q", ErrMalformed, p.Code)
			}
			lastCode = p.Code
			products = append(products, p)
		}

		if onProgress != nil && len(rows) > 0 {
			onProgress(estimateProgress(len(products), len(rows), c.batchSize))
		}
		if len(rows) < c.batchSize {
			break // terminal page
		}
	}

	c.log.Debug("downloaded products", zap.Int("count", len(products)))
	return products, nil
}

// DownloadSecondaryCodes pages through the remote alias table. Identical
// pagination contract to DownloadProducts.
func (c *Client) DownloadSecondaryCodes(ctx context.Context, onProgress ProgressFunc) ([]types.SecondaryCode, error) {
	codes := make([]types.SecondaryCode, 0, c.batchSize)
	lastCode := ""

	for offset := 0; ; offset += c.batchSize {
		var rows []secondaryCodeRow
		if err := c.getPage(ctx, secondaryCodesTable, "secondary_code,primary_code,description", "secondary_code.asc", offset, &rows); err != nil {
			return nil, err
		}
		if len(rows) > c.batchSize {
			return nil, fmt.Errorf("%w: page larger than requested batch (%d > %d)", ErrMalformed, len(rows), c.batchSize)
		}

		for i := range rows {
			sc, err := rows[i].toSecondaryCode()
			if err != nil {
				return nil, fmt.Errorf("%w: secondary code row %d: %v", ErrMalformed, offset+i, err)
			}
			if lastCode != "" && sc.SecondaryCode <= lastCode {
				return nil, fmt.Errorf("%w: secondary code page out of order at %q", ErrMalformed, sc.SecondaryCode)
			}
			lastCode = sc.SecondaryCode
			codes = append(codes, sc)
		}

		if onProgress != nil && len(rows) > 0 {
			onProgress(estimateProgress(len(codes), len(rows), c.batchSize))
		}
		if len(rows) < c.batchSize {
			break
		}
	}

	c.log.Debug("downloaded secondary codes", zap.Int("count", len(codes)))
	return codes, nil
}

// estimateProgress extrapolates the total as loaded plus one more full batch
// while the last page came back full.
func estimateProgress(loaded, pageLen, batchSize int) Progress {
	total := loaded
	if pageLen == batchSize {
		total += batchSize
	}
	return Progress{Loaded: loaded, Total: total}
}

func (c *Client) getPage(ctx context.Context, table, sel, order string, offset int, dst any) error {
	params := url.Values{}
	params.Set("select", sel)
	params.Set("order", order)
	params.Set("limit", strconv.Itoa(c.batchSize))
	params.Set("offset", strconv.Itoa(offset))
	return c.getJSON(ctx, table, params, dst)
}

// getJSON performs one API read with retry on transient failures.
func (c *Client) getJSON(ctx context.Context, table string, params url.Values, dst any) error {
	_, err := retryWithBackoff(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.doGetJSON(ctx, table, params, dst)
	})
	return err
}

func (c *Client) doGetJSON(ctx context.Context, table string, params url.Values, dst any) error {
	u := c.baseURL.JoinPath("rest", "v1", table)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d from %s", ErrUnauthorized, resp.StatusCode, table)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d from %s", ErrUnreachable, resp.StatusCode, table)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: unexpected status %d from %s", ErrMalformed, resp.StatusCode, table)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrMalformed, table, err)
	}
	return nil
}

// Row shapes at the deserialization boundary. Rows missing required fields
// are rejected as malformed rather than propagated downstream.

type productRow struct {
	Code          string  `json:"code"`
	Description   string  `json:"description"`
	UnitPrice     float64 `json:"unit_price"`
	Category      string  `json:"category"`
	SecondaryCode string  `json:"secondary_code"`
}

func (r *productRow) toProduct() (types.Product, error) {
	p := types.Product{
		Code:          r.Code,
		Description:   r.Description,
		UnitPrice:     r.UnitPrice,
		Category:      r.Category,
		SecondaryCode: r.SecondaryCode,
	}
	if err := p.Validate(); err != nil {
		return types.Product{}, err
	}
	return p, nil
}

type secondaryCodeRow struct {
	SecondaryCode string `json:"secondary_code"`
	PrimaryCode   string `json:"primary_code"`
	Description   string `json:"description"`
}

func (r *secondaryCodeRow) toSecondaryCode() (types.SecondaryCode, error) {
	sc := types.SecondaryCode{
		SecondaryCode: r.SecondaryCode,
		PrimaryCode:   r.PrimaryCode,
		Description:   r.Description,
	}
	if err := sc.Validate(); err != nil {
		return types.SecondaryCode{}, err
	}
	return sc, nil
}

type versionRow struct {
	VersionHash string    `json:"version_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}
