package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seatflow/internal/shared/config"
)

const orderIDPlaceholder = "{ORDER_ID}"

// HTTPAuthority talks to a checkout-session REST provider
type HTTPAuthority struct {
	baseURL   string
	apiKey    string
	returnURL string
	client    *http.Client
}

func NewHTTPAuthority(cfg config.PaymentConfig, client *http.Client) *HTTPAuthority {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPAuthority{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		returnURL: cfg.ReturnURL,
		client:    client,
	}
}

type createSessionBody struct {
	ClientReferenceID string `json:"client_reference_id"`
	AmountMinor       int64  `json:"amount"`
	Currency          string `json:"currency"`
	CustomerEmail     string `json:"customer_email,omitempty"`
	Description       string `json:"description,omitempty"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
}

type sessionPayload struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	ExpiresAt     int64  `json:"expires_at"`
}

type sessionList struct {
	Data []sessionPayload `json:"data"`
}

func (a *HTTPAuthority) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	// both outcomes land on the return endpoint, which asks us for the real status
	returnURL := strings.ReplaceAll(a.returnURL, orderIDPlaceholder, req.OrderID.String())
	body := createSessionBody{
		ClientReferenceID: req.OrderRef,
		AmountMinor:       req.Amount.Shift(2).Round(0).IntPart(),
		Currency:          strings.ToLower(req.Currency),
		CustomerEmail:     req.Email,
		Description:       req.Description,
		SuccessURL:        returnURL,
		CancelURL:         returnURL,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/checkout/sessions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// the reference makes a retried create return the same session
	httpReq.Header.Set("Idempotency-Key", req.OrderRef)

	var payload sessionPayload
	if _, err := a.do(httpReq, "create_session", &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" || payload.URL == "" {
		return nil, fmt.Errorf("payment authority returned an incomplete session: %w", ErrUnavailable)
	}

	session := &Session{ID: payload.ID, URL: payload.URL}
	if payload.ExpiresAt > 0 {
		exp := time.Unix(payload.ExpiresAt, 0).UTC()
		session.ExpiresAt = &exp
	}
	return session, nil
}

func (a *HTTPAuthority) QueryStatus(ctx context.Context, orderRef string) (Status, error) {
	endpoint := a.baseURL + "/v1/checkout/sessions?" + url.Values{"client_reference_id": {orderRef}, "limit": {"1"}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var list sessionList
	// an HTTP 404 is a misrouted request, not a missing session
	if _, err := a.do(httpReq, "query_status", &list); err != nil {
		return "", err
	}
	if len(list.Data) == 0 {
		return StatusNotFound, nil
	}
	return MapSessionStatus(list.Data[0].Status, list.Data[0].PaymentStatus), nil
}

// MapSessionStatus folds a provider (status, payment_status) pair into a Status
func MapSessionStatus(sessionStatus, paymentStatus string) Status {
	switch {
	case paymentStatus == "paid" && sessionStatus == "complete":
		return StatusPaid
	case sessionStatus == "expired" || paymentStatus == "expired":
		return StatusExpired
	case sessionStatus == "canceled":
		return StatusCanceled
	case sessionStatus == "open":
		return StatusPending
	default:
		return StatusUnpaid
	}
}

func (a *HTTPAuthority) do(req *http.Request, op string, dest interface{}) (int, error) {
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("payment authority %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("payment authority %s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Op: op, Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return resp.StatusCode, fmt.Errorf("payment authority %s: invalid response: %w", op, err)
	}
	return resp.StatusCode, nil
}
