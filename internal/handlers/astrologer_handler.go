package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/astroline/backend/internal/services"
)

type AstrologerHandler struct {
	service   *services.AstrologerService
	validator *services.ValidationHelper
}

func NewAstrologerHandler(service *services.AstrologerService) *AstrologerHandler {
	return &AstrologerHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Profile returns the caller's astrologer profile
// @Summary Astrologer profile
// @Tags astrologers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response
// @Router /astrologers/me [get]
func (h *AstrologerHandler) Profile(w http.ResponseWriter, r *http.Request) {
	astrologerID, ok := r.Context().Value("accountID").(string)
	if !ok || astrologerID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	profile, err := h.service.GetProfile(astrologerID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, profile)
}

// SetRates updates the caller's per-minute consultation rates
// @Summary Set consultation rates
// @Description Updates only the rates present in the body; omitted rates keep their value
// @Tags astrologers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.RateUpdate true "Per-minute rates"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.Response
// @Router /astrologers/me/rates [put]
func (h *AstrologerHandler) SetRates(w http.ResponseWriter, r *http.Request) {
	astrologerID, ok := r.Context().Value("accountID").(string)
	if !ok || astrologerID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req services.RateUpdate

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

	profile, err := h.service.SetRates(astrologerID, req)
	if err != nil {
		var neg *services.NegativeRateError
		if errors.As(err, &neg) {
			services.SendErrorResponse(w, neg.Error(), http.StatusBadRequest, nil)
			return
		}
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, profile)
}

// SetAvailability toggles whether the caller appears bookable
// @Summary Set availability
// @Tags astrologers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{online=bool} true "Availability flag"
// @Success 200 {object} services.Response
// @Router /astrologers/me/availability [put]
func (h *AstrologerHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	astrologerID, ok := r.Context().Value("accountID").(string)
	if !ok || astrologerID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Online *bool `json:"online" validate:"required"`
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

	if err := h.service.SetAvailability(astrologerID, *req.Online); err != nil {
		services.SendDomainError(w, err)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]any{
		"astrologerId": astrologerID,
		"online":       *req.Online,
	})
}
