package mpesa

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

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
)

const (
	StatusPath  = "/payment/status/"
	ConfirmPath = "/cashier/api/mpesa/confirm-payment"
)

// Client talks to the payment backend over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

type statusResponse struct {
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Phone         string          `json:"phone"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerName  string          `json:"customer_name"`
	MpesaReceipt  string          `json:"mpesa_receipt"`
	TransactionID flexString      `json:"transaction_id"`
	TillNumber    flexString      `json:"till_number"`
	MpesaID       flexString      `json:"mpesa_id"`
	Error         string          `json:"error"`
}

type confirmRequest struct {
	MpesaID string `json:"mpesa_id"`
	SaleID  string `json:"sale_id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CheckStatus never returns an error for a response it could read: any
// unexpected status or shape becomes a Failed result for this tick.
func (c *Client) CheckStatus(ctx context.Context, transactionRef string) (payment.StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+StatusPath+url.PathEscape(transactionRef), nil)
	if err != nil {
		return payment.StatusResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return payment.StatusResult{}, apperr.Transient("status request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return payment.StatusResult{}, apperr.Transient("status response unreadable", err)
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return payment.FailedResult(fmt.Sprintf("HTTP %d: malformed status response", resp.StatusCode)), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := sr.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return payment.FailedResult(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, reason)), nil
	}

	return sr.result(), nil
}

func (sr statusResponse) result() payment.StatusResult {
	switch strings.ToLower(sr.Status) {
	case "completed":
		receipt := firstNonEmpty(sr.MpesaReceipt, string(sr.TransactionID))
		return payment.CompletedResult(payment.Completed{
			Amount:      sr.Amount,
			PayerPhone:  firstNonEmpty(sr.Phone, sr.CustomerPhone),
			PayerName:   sr.CustomerName,
			ReceiptCode: receipt,
			MpesaID:     firstNonEmpty(string(sr.MpesaID), receipt),
		})
	case "pending":
		return payment.PendingResult(payment.Pending{
			TillNumber: string(sr.TillNumber),
			Amount:     sr.Amount,
		})
	default:
		reason := sr.Error
		if reason == "" {
			reason = fmt.Sprintf("unexpected payment status %q", sr.Status)
		}
		return payment.FailedResult(reason)
	}
}

// ConfirmPayment returns a transient error carrying the server's message
// on any non-2xx reply.
func (c *Client) ConfirmPayment(ctx context.Context, mpesaID, saleID string) error {
	body, err := json.Marshal(confirmRequest{MpesaID: mpesaID, SaleID: saleID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+ConfirmPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return apperr.Transient("Network error occurred", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&er)
	msg := firstNonEmpty(er.Error, er.Message, "Failed to confirm payment")
	return apperr.Transient(msg, fmt.Errorf("HTTP %d", resp.StatusCode))
}

func (c *Client) client() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
