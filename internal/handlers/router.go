package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qcom/phoneotp/internal/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(
	otpHandlers *OTPHandlers,
	authMiddleware *middleware.AuthMiddleware,
	allowedOrigins []string,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(allowedOrigins))

	router.HandleFunc("/health", Health).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/send-otp", otpHandlers.SendOTP).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/verify-otp", otpHandlers.VerifyOTP).Methods(http.MethodPost, http.MethodOptions)

	router.Handle("/whoami", authMiddleware.RequireVerifiedPhone(http.HandlerFunc(otpHandlers.WhoAmI))).Methods(http.MethodGet, http.MethodOptions)

	return router
}
