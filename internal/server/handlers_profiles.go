package server

import (
	"net/http"

	"github.com/jonathan/vulture/internal/answers"
	"github.com/jonathan/vulture/internal/types"
)

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req types.CreateProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := s.store.CreateProfile(r.Context(), &req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := s.store.GetProfileFacts(r.Context(), profileID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if profile == nil {
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// handleStoreAnswer records a reviewed answer to a screening question so later
// runs can reuse it.
func (s *Server) handleStoreAnswer(w http.ResponseWriter, r *http.Request) {
	profileID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req types.StoreAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := s.store.GetProfileFacts(r.Context(), profileID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if profile == nil {
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}

	answer, err := answers.Remember(r.Context(), s.store, profileID, &req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, answer)
}
