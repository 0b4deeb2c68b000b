package web

import (
	"net/http"

	"github.com/JonMunkholm/regdesk/internal/auth"
)

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Email is required"})
		return
	}

	if err := s.otps.Issue(r.Context(), req.Email); err != nil {
		s.respondError(w, r, err, "Failed to send OTP")
		return
	}

	s.respondSuccess(w, http.StatusOK, "OTP sent successfully", nil)
}

type verifyOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.OTP == "" {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Email and OTP are required"})
		return
	}

	if err := s.otps.Verify(r.Context(), req.Email, req.OTP); err != nil {
		s.respondError(w, r, err, "Failed to verify OTP")
		return
	}

	token, err := s.tokens.Issue(req.Email)
	if err != nil {
		s.respondError(w, r, err, "Failed to verify OTP")
		return
	}

	s.respondJSON(w, http.StatusOK, verifyOTPResponse{
		Success: true,
		Message: "OTP verified successfully",
		Token:   token,
	})
}

func (s *Server) handleVerifyAccessKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessKey string `json:"accessKey"`
	}
	if err := decodeJSON(r, &req); err != nil || req.AccessKey == "" {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Secure access key is required"})
		return
	}

	if !auth.ValidAccessKey(s.cfg.Auth.AccessKey, req.AccessKey) {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid secure access key"})
		return
	}

	s.respondSuccess(w, http.StatusOK, "Secure access key verified successfully", nil)
}
