// Package client is the storefront backend's HTTP client, used by the checkout CLI and the
// payment tracker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ZewK3/Home-sub002/internal/api"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls the /v1 API. Protected calls take the session token explicitly.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New returns a Client for baseURL. httpClient may be nil; the default traces requests with
// otelhttp and times out after 15s.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

func (c *Client) RegisterCustomer(ctx context.Context, req api.RegisterCustomerRequest) (*api.SessionResponse, error) {
	var out api.SessionResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/customers/register", "", req, &out)
}

func (c *Client) LoginCustomer(ctx context.Context, email, password string) (*api.SessionResponse, error) {
	var out api.SessionResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/customers/login", "", api.LoginCustomerRequest{Email: email, Password: password}, &out)
}

func (c *Client) RegisterEmployee(ctx context.Context, req api.RegisterEmployeeRequest) (*api.EmployeeRegistrationResponse, error) {
	var out api.EmployeeRegistrationResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/employees/register", "", req, &out)
}

func (c *Client) LoginEmployee(ctx context.Context, employeeID, password string) (*api.SessionResponse, error) {
	var out api.SessionResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/employees/login", "", api.LoginEmployeeRequest{EmployeeID: employeeID, Password: password}, &out)
}

// Me returns the principal token resolves to. A 401 means the session is gone.
func (c *Client) Me(ctx context.Context, token string) (*api.MeResponse, error) {
	var out api.MeResponse
	return &out, c.do(ctx, http.MethodGet, "/v1/session", token, nil, &out)
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/v1/session/logout", token, nil, nil)
}

func (c *Client) SaveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error) {
	var out api.SaveOrderResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/orders", token, req, &out)
}

func (c *Client) ReserveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error) {
	var out api.SaveOrderResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/orders/reserve", token, req, &out)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, token, orderID, status string) (*api.StatusResponse, error) {
	var out api.StatusResponse
	path := "/v1/orders/" + url.PathEscape(orderID) + "/status"
	return &out, c.do(ctx, http.MethodPost, path, token, api.UpdateStatusRequest{Status: status}, &out)
}

func (c *Client) CancelOrder(ctx context.Context, token, orderID string) (*api.StatusResponse, error) {
	var out api.StatusResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/cancel", token, nil, &out)
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]api.Order, error) {
	var out api.OrdersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) GetUser(ctx context.Context, token string) (*api.UserResponse, error) {
	var out api.UserResponse
	return &out, c.do(ctx, http.MethodGet, "/v1/users/me", token, nil, &out)
}

// CheckTransaction asks whether a payment carrying correlationID has arrived. No session is needed.
func (c *Client) CheckTransaction(ctx context.Context, correlationID string) (*api.CheckTransactionResponse, error) {
	var out api.CheckTransactionResponse
	return &out, c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(correlationID), "", nil, &out)
}

// IngestPayments pushes parsed bank notifications, authenticated by an ingest token.
func (c *Client) IngestPayments(ctx context.Context, ingestToken string, notes []api.PaymentNotification) (*api.IngestResponse, error) {
	var out api.IngestResponse
	return &out, c.do(ctx, http.MethodPost, "/v1/payments", ingestToken, api.IngestRequest{Emails: notes}, &out)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// success reports whether status carries a result. The employee registration duplicates answer
// 209-211, so only the standard success codes count.
func success(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated || status == http.StatusNoContent
}
