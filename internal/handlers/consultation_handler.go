package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/astroline/backend/internal/middleware"
	"github.com/astroline/backend/internal/models"
	"github.com/astroline/backend/internal/services"
)

type ConsultationHandler struct {
	service   *services.ConsultationService
	channels  *services.ChannelService
	validator *services.ValidationHelper
}

func NewConsultationHandler(service *services.ConsultationService, channels *services.ChannelService) *ConsultationHandler {
	return &ConsultationHandler{
		service:   service,
		channels:  channels,
		validator: services.NewValidationHelper(),
	}
}

// Book creates a consultation booking
// @Summary Book a consultation
// @Description Book a consultation with an astrologer; debits the estimated amount from the wallet
// @Tags consultations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.BookRequest true "Booking request"
// @Success 201 {object} services.Response
// @Failure 400 {object} services.Response
// @Failure 401 {object} services.Response
// @Router /consultations [post]
func (h *ConsultationHandler) Book(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("accountID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req services.BookRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.Book(r.Context(), userID, req)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusCreated, map[string]any{
		"sessionId":          result.Session.SessionID,
		"state":              result.Session.State,
		"ratePerMinute":      result.Session.RatePerMinute,
		"totalAmount":        result.Session.TotalAmount,
		"walletBalanceAfter": result.WalletBalanceAfter,
		"channelToken":       result.Session.ChannelToken,
	})
}

// Accept confirms a pending consultation
// @Summary Accept a consultation
// @Description Astrologer accepts a pending booking
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 403 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/accept [post]
func (h *ConsultationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.service.Accept(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionID,
		"status":    session.State,
	})
}

// Reject cancels a pending or confirmed consultation on the astrologer's behalf
// @Summary Reject a consultation
// @Description Astrologer rejects a booking; the full booking debit is refunded
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/reject [post]
func (h *ConsultationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	result, err := h.service.Reject(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	h.writeCancelled(w, result)
}

// Cancel cancels a pending or confirmed consultation on the user's behalf
// @Summary Cancel a consultation
// @Description User cancels a booking; the full booking debit is refunded
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/cancel [post]
func (h *ConsultationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	result, err := h.service.Cancel(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	h.writeCancelled(w, result)
}

func (h *ConsultationHandler) writeCancelled(w http.ResponseWriter, result *services.CancelResult) {
	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId":          result.Session.SessionID,
		"status":             result.Session.State,
		"refundAmount":       result.RefundAmount,
		"walletBalanceAfter": result.WalletBalanceAfter,
	})
}

// Start begins a consultation
// @Summary Start a consultation
// @Description Either party starts the session; the billing clock starts here
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/start [post]
func (h *ConsultationHandler) Start(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.service.Start(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionID,
		"status":    session.State,
		"startedAt": session.StartedAt,
	})
}

// End completes a consultation and settles it against the booking debit
// @Summary End a consultation
// @Description Either party ends the session; unused minutes are refunded, overruns are capped
// @Tags consultations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param request body object{notes=string} false "Optional astrologer notes"
// @Success 200 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/end [post]
func (h *ConsultationHandler) End(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	var req struct {
		Notes *string `json:"notes" validate:"omitempty,max=2000"`
	}
	// The body is optional on End.
	if r.Body != nil && r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
			return
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
	}

	result, err := h.service.End(callerID, sessionID, req.Notes)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId":       result.Session.SessionID,
		"status":          result.Session.State,
		"endedAt":         result.Session.EndedAt,
		"durationMinutes": result.Session.DurationMinutes,
		"totalAmount":     result.Session.TotalAmount,
		"refundAmount":    result.RefundAmount,
	})
}

// Review attaches a rating and review to a completed consultation
// @Summary Review a consultation
// @Description User rates a completed session; the latest review wins
// @Tags consultations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param request body object{rating=int,review=string} true "Review"
// @Success 200 {object} services.Response
// @Failure 409 {object} services.Response
// @Router /consultations/{sessionId}/review [post]
func (h *ConsultationHandler) Review(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	var req struct {
		Rating int     `json:"rating" validate:"required,min=1,max=5"`
		Review *string `json:"review" validate:"omitempty,max=2000"`
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

	session, err := h.service.Review(callerID, sessionID, req.Rating, req.Review)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionID,
		"rating":    req.Rating,
	})
}

// Get returns a single consultation in the caller's projection
// @Summary Get a consultation
// @Description Returns the session as seen by the caller's role
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.Response
// @Router /consultations/{sessionId} [get]
func (h *ConsultationHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	role, _ := r.Context().Value("role").(string)
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.service.Get(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, h.project(session, role))
}

// List returns the caller's consultations, newest first
// @Summary List consultations
// @Description Returns the caller's sessions in their role's projection
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of sessions to return (default 50, max 100)"
// @Success 200 {object} services.Response
// @Router /consultations [get]
func (h *ConsultationHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	role, _ := r.Context().Value("role").(string)

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	var sessions []models.ConsultationSession
	var err error
	if role == middleware.RoleAstrologer {
		sessions, err = h.service.ListForAstrologer(callerID, limit)
	} else {
		sessions, err = h.service.ListForUser(callerID, limit)
	}
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	views := make([]any, 0, len(sessions))
	for i := range sessions {
		views = append(views, h.project(&sessions[i], role))
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}

// ChannelQR renders the session's channel token as a QR image for joining
// from a second device
// @Summary Channel join QR
// @Description Returns a QR image encoding the session's channel token
// @Tags consultations
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.Response
// @Router /consultations/{sessionId}/channel/qr [get]
func (h *ConsultationHandler) ChannelQR(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("accountID").(string)
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.service.Get(callerID, sessionID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	if models.TerminalState(session.State) {
		services.SendDomainError(w, models.NewInvalidTransition("join", session.State))
		return
	}

	qrImage, err := h.channels.JoinQR(session.ChannelToken)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionID,
		"qrImage":   qrImage,
	})
}

// ResolveChannel maps a channel token back to its session for the media
// transport. The transport authenticates with the shared gateway secret, not
// a user token.
// @Summary Resolve a channel token
// @Tags channels
// @Produce json
// @Param X-Gateway-Signature header string true "Shared gateway secret"
// @Param token path string true "Channel token"
// @Success 200 {object} services.Response
// @Failure 401 {object} services.Response
// @Failure 404 {object} services.Response
// @Router /channels/{token} [get]
func (h *ConsultationHandler) ResolveChannel(w http.ResponseWriter, r *http.Request) {
	secret := viper.GetString("gateway.webhook_secret")
	sig := r.Header.Get("X-Gateway-Signature")
	if secret == "" || subtle.ConstantTimeCompare([]byte(sig), []byte(secret)) != 1 {
		services.SendErrorResponse(w, "Invalid gateway signature", http.StatusUnauthorized, nil)
		return
	}

	token := chi.URLParam(r, "token")

	sessionID, err := h.channels.Resolve(r.Context(), token)
	if err != nil {
		services.SendErrorResponse(w, "Invalid or expired channel token", http.StatusNotFound, nil)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
	})
}

func (h *ConsultationHandler) project(session *models.ConsultationSession, role string) any {
	if role == middleware.RoleAstrologer {
		return session.AstrologerView()
	}
	return session.UserView()
}
