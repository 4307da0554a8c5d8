// Package payments wraps the hosted checkout provider. The platform
// only creates payment sessions; card handling stays on the provider's
// pages.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Currency for all book prices. Prices are provider-smallest-unit
// cents on the wire.
const Currency = "kes"

// CheckoutParams describes one book purchase session.
type CheckoutParams struct {
	UserID        string
	CustomerEmail string
	BookID        string
	BookTitle     string
	// Price in currency units (not cents).
	Price float64
	// Origin is the site base URL for redirect targets.
	Origin string
}

// CheckoutSession is the provider's hosted payment page.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutClient creates hosted checkout sessions.
type CheckoutClient interface {
	CreateSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)
}

// StripeClient talks to the Stripe checkout API with form-encoded
// requests.
type StripeClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewStripeClient(baseURL, secretKey string) *StripeClient {
	return &StripeClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secretKey:  strings.TrimSpace(secretKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateSession builds a single-item payment session. An existing
// customer matching the email is reused when found.
func (c *StripeClient) CreateSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	if params.BookID == "" || params.BookTitle == "" || params.Price < 0 {
		return CheckoutSession{}, errors.New("book id, title, and price are required")
	}

	customerID, err := c.findCustomer(ctx, params.CustomerEmail)
	if err != nil {
		return CheckoutSession{}, err
	}

	form := url.Values{}
	if customerID != "" {
		form.Set("customer", customerID)
	} else {
		form.Set("customer_email", params.CustomerEmail)
	}
	form.Set("mode", "payment")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", Currency)
	form.Set("line_items[0][price_data][product_data][name]", params.BookTitle)
	form.Set("line_items[0][price_data][product_data][description]", fmt.Sprintf("Full access to %q", params.BookTitle))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(math.Round(params.Price*100)), 10))
	form.Set("success_url", params.Origin+"/book/"+params.BookID+"?purchase=success")
	form.Set("cancel_url", params.Origin+"/book/"+params.BookID+"?purchase=canceled")
	form.Set("metadata[book_id]", params.BookID)
	form.Set("metadata[user_id]", params.UserID)

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return CheckoutSession{}, err
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, errors.New("checkout session incomplete")
	}
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *StripeClient) findCustomer(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("customer email required")
	}
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/customers?"+query.Encode(), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) == 0 {
		return "", nil
	}
	return list.Data[0].ID, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("checkout api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("checkout api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
