package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/jonathan/vulture/internal/types"
)

// handleLogin exchanges the operator password for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.jwtService == nil {
		s.errorResponse(w, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req types.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.checkCredentials(req.Operator, req.Password) {
		s.log.WithContext(r.Context()).Warn("operator login failed", "operator", req.Operator)
		s.failure(w, r, &ErrInvalidCredentials{})
		return
	}

	token, err := s.jwtService.GenerateToken(req.Operator)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.LoginResponse{
		Token:     token,
		ExpiresIn: int(s.jwtService.config.Expiration().Seconds()),
	})
}

// checkCredentials always runs the bcrypt comparison so a wrong operator name
// costs as much as a wrong password.
func (s *Server) checkCredentials(operator, password string) bool {
	passwordOK := s.auth.OperatorPasswordHash != "" && s.passwords.VerifyPassword(password, s.auth.OperatorPasswordHash)
	operatorOK := subtle.ConstantTimeCompare([]byte(operator), []byte(s.auth.Operator)) == 1
	return passwordOK && operatorOK
}
