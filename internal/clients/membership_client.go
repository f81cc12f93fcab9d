// internal/clients/membership_client.go
package clients

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
	"time"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/membership"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the gym API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error %d: %s %v", e.Status, e.Message, e.Fields)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// GymClient talks to the membership API served by cmd/server.
type GymClient struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

type Option func(*GymClient)

// WithBasicAuth sends the admin credentials with every request.
func WithBasicAuth(user, password string) Option {
	return func(c *GymClient) {
		c.user = user
		c.password = password
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *GymClient) { c.http = h }
}

func NewGymClient(baseURL string, opts ...Option) *GymClient {
	c := &GymClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GymClient) GetMember(ctx context.Context, id string) (membership.MemberView, error) {
	var member membership.MemberView
	err := c.do(ctx, http.MethodGet, "/api/members/"+url.PathEscape(id), nil, &member)
	return member, err
}

func (c *GymClient) ListMembers(ctx context.Context, filter derive.Filter, search string) ([]membership.MemberView, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("status", string(filter))
	}
	if search != "" {
		q.Set("q", search)
	}
	path := "/api/members/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var members []membership.MemberView
	err := c.do(ctx, http.MethodGet, path, nil, &members)
	return members, err
}

func (c *GymClient) RegisterMember(ctx context.Context, in membership.RegisterInput) (domain.Member, error) {
	var member domain.Member
	err := c.do(ctx, http.MethodPost, "/api/members/", in, &member)
	return member, err
}

func (c *GymClient) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := c.do(ctx, http.MethodGet, "/api/payments/", nil, &payments)
	return payments, err
}

func (c *GymClient) GetSettings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

func (c *GymClient) SaveSettings(ctx context.Context, s domain.Settings) error {
	return c.do(ctx, http.MethodPut, "/api/settings", s, nil)
}

func (c *GymClient) Dashboard(ctx context.Context, asOf domain.Date) (derive.DashboardView, error) {
	path := "/api/dashboard"
	if !asOf.IsZero() {
		path += "?asOf=" + asOf.String()
	}
	var view derive.DashboardView
	err := c.do(ctx, http.MethodGet, path, nil, &view)
	return view, err
}

func (c *GymClient) MonthlyReport(ctx context.Context, year int) (membership.Report, error) {
	var report membership.Report
	err := c.do(ctx, http.MethodGet, "/api/reports/"+strconv.Itoa(year), nil, &report)
	return report, err
}

func (c *GymClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
