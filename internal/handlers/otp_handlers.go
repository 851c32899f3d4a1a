package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/qcom/phoneotp/internal/logging"
	"github.com/qcom/phoneotp/internal/middleware"
	"github.com/qcom/phoneotp/internal/models"
	"github.com/qcom/phoneotp/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	msgOTPSent     = "Otp Sent Successfully"
	msgOTPVerified = "Your Otp Has Been Verified Successfully"
	msgWrongOTP    = "You Have Entered Wrong Otp"
	msgOTPExpired  = "Your Otp Has Been Expired"
	msgSendFailed  = "Failed To Send Otp"
)

type OTPHandlers struct {
	otpService   *service.OTPService
	tokenService *service.TokenService
	exposeCode   bool
	logger       *logrus.Logger
}

func NewOTPHandlers(
	otpService *service.OTPService,
	tokenService *service.TokenService,
	exposeCode bool,
	logger *logrus.Logger,
) *OTPHandlers {
	return &OTPHandlers{
		otpService:   otpService,
		tokenService: tokenService,
		exposeCode:   exposeCode,
		logger:       logger,
	}
}

type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type Response struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

type VerifyOTPResponse struct {
	Response
	*models.VerificationToken
}

type WhoAmIResponse struct {
	Response
	PhoneNumber string `json:"phoneNumber"`
}

func (h *OTPHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	phoneNumber := strings.TrimSpace(req.PhoneNumber)
	if phoneNumber == "" {
		h.respondWithError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	code, err := h.otpService.Issue(r.Context(), phoneNumber)
	if err != nil {
		entry := h.logger.WithError(err).WithField("phone", logging.MaskPhone(phoneNumber))
		if errors.Is(err, service.ErrSendFailed) {
			// Provider errors name the account and error code; they stay in the log.
			entry.Error("Failed to deliver OTP")
			h.respondWithError(w, http.StatusNotImplemented, msgSendFailed)
			return
		}
		entry.Error("Failed to issue OTP")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to issue OTP")
		return
	}

	msg := msgOTPSent
	if h.exposeCode {
		msg = fmt.Sprintf("Otp: %s Sent Successfully", code)
	}

	h.respondWithJSON(w, http.StatusOK, Response{Success: true, Msg: msg})
}

func (h *OTPHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	phoneNumber := strings.TrimSpace(req.PhoneNumber)
	otp := strings.TrimSpace(req.OTP)

	err := h.otpService.Verify(r.Context(), phoneNumber, otp)
	switch {
	case errors.Is(err, service.ErrInvalidOTP):
		h.respondWithError(w, http.StatusBadRequest, msgWrongOTP)
		return
	case errors.Is(err, service.ErrOTPExpired):
		h.respondWithError(w, http.StatusGone, msgOTPExpired)
		return
	case err != nil:
		h.logger.WithError(err).WithField("phone", logging.MaskPhone(phoneNumber)).Error("Failed to verify OTP")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	}

	token, err := h.tokenService.Issue(phoneNumber)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue verification token")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to issue verification token")
		return
	}

	h.respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Response:          Response{Success: true, Msg: msgOTPVerified},
		VerificationToken: token,
	})
}

// WhoAmI echoes the phone number from a verification token.
func (h *OTPHandlers) WhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	h.respondWithJSON(w, http.StatusOK, WhoAmIResponse{
		Response:    Response{Success: true, Msg: "Phone number verified"},
		PhoneNumber: claims.Phone,
	})
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *OTPHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (h *OTPHandlers) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, Response{Success: false, Msg: message})
}
