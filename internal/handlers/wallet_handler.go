package handlers

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"

	"github.com/astroline/backend/internal/services"
)

type WalletHandler struct {
	service   *services.WalletService
	validator *services.ValidationHelper
}

func NewWalletHandler(service *services.WalletService) *WalletHandler {
	return &WalletHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Balance returns the caller's wallet balance
// @Summary Wallet balance
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response
// @Router /wallet/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := h.service.Balance(accountID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   balance,
	})
}

// History returns the caller's ledger entries, newest first
// @Summary Wallet history
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Entries per page (default 50, max 100)"
// @Param offset query int false "Pagination offset"
// @Success 200 {object} services.Response
// @Router /wallet/entries [get]
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, err := h.service.History(accountID, limit, offset)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Recharge records a verified payment-gateway credit event
// @Summary Recharge webhook
// @Description Credits a wallet from a gateway event; replays of the same reference are no-ops
// @Tags wallet
// @Accept json
// @Produce json
// @Param X-Gateway-Signature header string true "Shared gateway secret"
// @Param request body services.RechargeEvent true "Verified payment event"
// @Success 200 {object} services.Response
// @Success 201 {object} services.Response
// @Failure 400 {object} services.Response
// @Failure 401 {object} services.Response
// @Router /payments/recharge [post]
func (h *WalletHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	secret := viper.GetString("gateway.webhook_secret")
	sig := r.Header.Get("X-Gateway-Signature")
	if secret == "" || subtle.ConstantTimeCompare([]byte(sig), []byte(secret)) != 1 {
		services.SendErrorResponse(w, "Invalid gateway signature", http.StatusUnauthorized, nil)
		return
	}

	var event services.RechargeEvent

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&event); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&event); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, duplicate, err := h.service.Recharge(event)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}

	services.SendSuccessResponse(w, status, map[string]any{
		"entryId":           entry.EntryID,
		"accountId":         entry.AccountID,
		"amount":            entry.Amount,
		"balance":           entry.Balance,
		"externalReference": entry.ExternalReference,
		"duplicate":         duplicate,
	})
}

// RechargeQR renders a QR the mobile app scans to hand off to the payment
// gateway with the account and amount pre-filled
// @Summary Recharge QR
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param amount query string true "Recharge amount"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.Response
// @Router /wallet/recharge/qr [get]
func (h *WalletHandler) RechargeQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || amount.Sign() <= 0 {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	reference := uuid.New().String()
	payload := fmt.Sprintf("astroline://recharge?account=%s&amount=%s&ref=%s",
		accountID, amount.String(), reference)

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"reference": reference,
		"amount":    amount,
		"qrImage":   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// Withdraw debits the astrologer's earnings and dispatches a bank payout
// @Summary Withdraw earnings
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string} true "Withdrawal amount"
// @Success 201 {object} services.Response
// @Failure 400 {object} services.Response
// @Router /wallet/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	astrologerID, ok := r.Context().Value("accountID").(string)
	if !ok || astrologerID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, err := h.service.Withdraw(astrologerID, req.Amount)
	if err != nil {
		var below *services.WithdrawalBelowMinimumError
		if errors.As(err, &below) {
			services.SendErrorResponse(w, below.Error(), http.StatusBadRequest, nil)
			return
		}
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusCreated, map[string]any{
		"entryId": entry.EntryID,
		"amount":  entry.Amount,
		"balance": entry.Balance,
	})
}
