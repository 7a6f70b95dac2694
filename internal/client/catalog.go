package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"catalog/importer/internal/config"
	"catalog/importer/internal/domain"
	"catalog/importer/internal/session"
)

// CatalogService is the remote catalog API used by an import run. Every
// error it returns is an *APIError.
type CatalogService interface {
	GetBuyer(ctx context.Context, id string) (*domain.Buyer, error)
	ListBuyers(ctx context.Context) ([]domain.Buyer, error)
	CreateBuyer(ctx context.Context, buyer domain.Buyer) (*domain.Buyer, error)

	GetCatalog(ctx context.Context, id string) (*domain.Catalog, error)
	ListCatalogs(ctx context.Context) ([]domain.Catalog, error)
	CreateCatalog(ctx context.Context, catalog domain.Catalog) (*domain.Catalog, error)
	SaveCatalogAssignment(ctx context.Context, assignment domain.CatalogAssignment) error

	SaveCategory(ctx context.Context, catalogID string, category domain.Category) error
	SaveCategoryAssignment(ctx context.Context, catalogID string, assignment domain.CategoryAssignment) error

	SavePriceSchedule(ctx context.Context, schedule domain.PriceSchedule) error
	SaveProduct(ctx context.Context, product domain.Product) error
	SaveProductAssignment(ctx context.Context, catalogID string, assignment domain.ProductAssignment) error
}

type catalogClient struct {
	baseURL    string
	httpClient *resty.Client
}

// NewCatalogClient returns a client limited to cfg.MaxRequestsPerSecond HTTP
// attempts per second. Retries take their own slot.
func NewCatalogClient(sess *session.Session, cfg config.CatalogConfig) CatalogService {
	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}
	return newCatalogClient(sess, cfg, rl)
}

func newCatalogClient(sess *session.Session, cfg config.CatalogConfig, rl ratelimit.Limiter) *catalogClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+sess.AccessToken).
		AddRequestMiddleware(func(*resty.Client, *resty.Request) error {
			rl.Take()
			return nil
		})

	return &catalogClient{
		baseURL:    sess.APIURL + "/v1",
		httpClient: client,
	}
}

func (c *catalogClient) url(segments ...string) string {
	u := c.baseURL
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

func (c *catalogClient) GetBuyer(ctx context.Context, id string) (*domain.Buyer, error) {
	var buyer domain.Buyer
	if err := c.do(ctx, http.MethodGet, c.url("buyers", id), nil, &buyer); err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (c *catalogClient) ListBuyers(ctx context.Context) ([]domain.Buyer, error) {
	var page domain.ListPage[domain.Buyer]
	if err := c.do(ctx, http.MethodGet, c.url("buyers")+"?page=1&pageSize=20", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *catalogClient) CreateBuyer(ctx context.Context, buyer domain.Buyer) (*domain.Buyer, error) {
	var created domain.Buyer
	if err := c.do(ctx, http.MethodPost, c.url("buyers"), buyer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *catalogClient) GetCatalog(ctx context.Context, id string) (*domain.Catalog, error) {
	var catalog domain.Catalog
	if err := c.do(ctx, http.MethodGet, c.url("catalogs", id), nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *catalogClient) ListCatalogs(ctx context.Context) ([]domain.Catalog, error) {
	var page domain.ListPage[domain.Catalog]
	if err := c.do(ctx, http.MethodGet, c.url("catalogs")+"?page=1&pageSize=20", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *catalogClient) CreateCatalog(ctx context.Context, catalog domain.Catalog) (*domain.Catalog, error) {
	var created domain.Catalog
	if err := c.do(ctx, http.MethodPost, c.url("catalogs"), catalog, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *catalogClient) SaveCatalogAssignment(ctx context.Context, assignment domain.CatalogAssignment) error {
	return c.do(ctx, http.MethodPost, c.url("catalogs", "assignments"), assignment, nil)
}

func (c *catalogClient) SaveCategory(ctx context.Context, catalogID string, category domain.Category) error {
	return c.do(ctx, http.MethodPut, c.url("catalogs", catalogID, "categories", category.ID), category, nil)
}

func (c *catalogClient) SaveCategoryAssignment(ctx context.Context, catalogID string, assignment domain.CategoryAssignment) error {
	return c.do(ctx, http.MethodPost, c.url("catalogs", catalogID, "categories", "assignments"), assignment, nil)
}

func (c *catalogClient) SavePriceSchedule(ctx context.Context, schedule domain.PriceSchedule) error {
	return c.do(ctx, http.MethodPut, c.url("priceschedules", schedule.ID), schedule, nil)
}

func (c *catalogClient) SaveProduct(ctx context.Context, product domain.Product) error {
	return c.do(ctx, http.MethodPut, c.url("products", product.ID), product, nil)
}

func (c *catalogClient) SaveProductAssignment(ctx context.Context, catalogID string, assignment domain.ProductAssignment) error {
	return c.do(ctx, http.MethodPost, c.url("catalogs", catalogID, "categories", "productassignments"), assignment, nil)
}

// do sends one rate-limited JSON request. A nil out discards the response body.
func (c *catalogClient) do(ctx context.Context, method, target string, body, out any) error {
	req := &Request{Method: method, URL: target}

	r := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindDecode, Message: "failed to encode request", Request: req, Err: err}
		}
		r.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	resp, err := r.Execute(method, target)
	if err != nil {
		if ctx.Err() != nil {
			return newTransportError(req, fmt.Errorf("request cancelled: %w", ctx.Err()))
		}
		return newTransportError(req, err)
	}

	log.Debugf("%s %s -> %d", method, target, resp.StatusCode())

	if resp.IsError() {
		return newStatusError(req, resp.StatusCode(), []byte(resp.String()))
	}

	if out == nil {
		return nil
	}
	if err := unmarshal([]byte(resp.String()), out); err != nil {
		return newDecodeError(req, resp.StatusCode(), err)
	}
	return nil
}

func unmarshal(data []byte, out any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}
	return json.Unmarshal(data, out)
}
