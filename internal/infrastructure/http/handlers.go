package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
)

// PaymentHandler serves a local stand-in for the mobile-money backend.
type PaymentHandler struct {
	Ledger     payment.Ledger
	Logger     logging.Logger
	TillNumber string
	Now        func() time.Time
}

type SimulateRequest struct {
	SaleID       string          `json:"sale_id"`
	Phone        string          `json:"phone"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
}

type ConfirmRequest struct {
	MpesaID string `json:"mpesa_id"`
	SaleID  string `json:"sale_id"`
}

type statusCompleted struct {
	Status        string          `json:"status"`
	MpesaReceipt  string          `json:"mpesa_receipt"`
	MpesaID       string          `json:"mpesa_id"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerName  string          `json:"customer_name"`
	Amount        decimal.Decimal `json:"amount"`
}

type statusPending struct {
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	TillNumber *string         `json:"till_number"`
}

// Status reports a transaction. Unknown references are opened as pending
// so a terminal can start polling before the customer pays.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	tx, err := h.openOrFind(ref, decimal.Zero, "")
	if err != nil {
		h.Logger.Error("status lookup failed", map[string]any{"ref": ref, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Failed to check payment status")
		return
	}

	if tx.Status == payment.TxPending {
		var till *string
		if h.TillNumber != "" {
			till = &h.TillNumber
		}
		writeJSON(w, http.StatusOK, statusPending{Status: "pending", Amount: tx.Amount, TillNumber: till})
		return
	}

	writeJSON(w, http.StatusOK, statusCompleted{
		Status:        "completed",
		MpesaReceipt:  tx.ReceiptCode,
		MpesaID:       tx.MpesaID,
		CustomerPhone: tx.Phone,
		CustomerName:  tx.CustomerName,
		Amount:        tx.Amount,
	})
}

// Simulate marks a transaction as paid by the customer.
func (h *PaymentHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.SaleID == "" {
		writeError(w, http.StatusBadRequest, "sale_id is required")
		return
	}
	if h.TillNumber == "" {
		writeError(w, http.StatusBadRequest, "Shop till number not configured")
		return
	}
	if req.Phone == "" {
		req.Phone = "254712345678"
	}

	tx, err := h.openOrFind(req.SaleID, req.Amount, req.Phone)
	if err != nil {
		h.Logger.Error("simulation failed", map[string]any{"ref": req.SaleID, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Simulation failed")
		return
	}
	if tx.Status != payment.TxPending {
		writeError(w, http.StatusConflict, "Payment already received")
		return
	}

	receipt := "Q" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	tx.Status = payment.TxCompleted
	tx.ReceiptCode = receipt
	tx.MpesaID = receipt
	tx.Phone = req.Phone
	tx.CustomerName = strings.TrimSpace(req.CustomerName)
	if !req.Amount.IsZero() {
		tx.Amount = req.Amount
	}
	tx.UpdatedAt = h.now()

	if err := h.Ledger.Update(tx); err != nil {
		h.Logger.Error("simulation failed", map[string]any{"ref": req.SaleID, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Simulation failed")
		return
	}

	h.Logger.Info("payment simulated", map[string]any{
		"ref":     tx.Ref,
		"receipt": receipt,
		"amount":  tx.Amount.StringFixed(2),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       "Payment simulation initiated",
		"mpesa_receipt": receipt,
	})
}

// Confirm links a received payment to its sale. Repeating a confirmation
// for the same pair succeeds.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := h.Ledger.FindByRef(req.SaleID)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound) {
			writeError(w, http.StatusBadRequest, "No matching payment found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to confirm payment")
		return
	}

	if tx.Status == payment.TxPending || tx.MpesaID != req.MpesaID {
		writeError(w, http.StatusBadRequest, "No matching payment found")
		return
	}

	if tx.Status == payment.TxCompleted {
		tx.Status = payment.TxConfirmed
		tx.SaleID = req.SaleID
		tx.UpdatedAt = h.now()
		if err := h.Ledger.Update(tx); err != nil {
			h.Logger.Error("confirm failed", map[string]any{"ref": tx.Ref, "error": err.Error()})
			writeError(w, http.StatusInternalServerError, "Failed to confirm payment")
			return
		}
		h.Logger.Info("payment confirmed", map[string]any{"ref": tx.Ref, "receipt": tx.ReceiptCode})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"sale_id":       tx.Ref,
		"mpesa_receipt": tx.ReceiptCode,
	})
}

func (h *PaymentHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": serviceName})
}

func (h *PaymentHandler) openOrFind(ref string, amount decimal.Decimal, phone string) (*payment.Transaction, error) {
	now := h.now()
	if _, err := h.Ledger.SaveIfNotExist(&payment.Transaction{
		Ref:       ref,
		Status:    payment.TxPending,
		Amount:    amount,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	return h.Ledger.FindByRef(ref)
}

func (h *PaymentHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
