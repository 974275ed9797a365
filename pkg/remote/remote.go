// Package remote talks to DESA-style registry services: user authentication
// and nomenclature value lists.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRejected marks an explicit "credentials rejected" answer. It is
// non-fatal to a multi-service fan-out; every other error is a service or
// transport failure and aborts the caller.
var ErrRejected = errors.New("authentication rejected")

// ServiceConfig describes one configured remote service.
type ServiceConfig struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Operator       string `json:"operator"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// User is the remote identity returned on successful authentication.
type User struct {
	Roles   []string `json:"roles"`
	Name    string   `json:"name"`
	Surname string   `json:"surname"`
	Email   string   `json:"email"`
}

// Nomenclature is one entry of a remote value list.
type Nomenclature struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Client is the remote service surface the core consumes.
type Client interface {
	ID() string
	Authenticate(ctx context.Context, username, password, producer string) (*User, error)
	Nomenclatures(ctx context.Context, kind, producer string) ([]Nomenclature, error)
}

type restClient struct {
	cfg  ServiceConfig
	http *resty.Client
}

// ParseServices builds clients from a JSON array of service configurations,
// typically the REGISTRY_SERVICES environment variable.
func ParseServices(raw string) ([]Client, error) {
	if raw == "" {
		return nil, nil
	}
	var cfgs []ServiceConfig
	if err := json.Unmarshal([]byte(raw), &cfgs); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	clients := make([]Client, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.ID == "" || cfg.URL == "" {
			return nil, fmt.Errorf("invalid service configuration: id and url are required")
		}
		clients = append(clients, NewClient(cfg))
	}
	return clients, nil
}

// NewClient builds a client with the configured bounded timeout.
func NewClient(cfg ServiceConfig) Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.Operator, cfg.Password)
	return &restClient{cfg: cfg, http: c}
}

func (c *restClient) ID() string { return c.cfg.ID }

func (c *restClient) Authenticate(ctx context.Context, username, password, producer string) (*User, error) {
	user := &User{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": username,
			"password": password,
			"producer": producer,
		}).
		SetResult(user).
		Post("/users/authenticate")
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", c.cfg.ID, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return user, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("service %s: %w", c.cfg.ID, ErrRejected)
	default:
		return nil, fmt.Errorf("service %s: unexpected status code: %d", c.cfg.ID, resp.StatusCode())
	}
}

func (c *restClient) Nomenclatures(ctx context.Context, kind, producer string) ([]Nomenclature, error) {
	var values []Nomenclature
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("kind", kind).
		SetQueryParam("producer", producer).
		SetResult(&values).
		Get("/nomenclatures")
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", c.cfg.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("service %s: unexpected status code: %d", c.cfg.ID, resp.StatusCode())
	}
	return values, nil
}
