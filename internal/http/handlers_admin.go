package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mauv0809/scoreline/internal/admin"
	"github.com/mauv0809/scoreline/internal/apperr"
)

func decodeAdminRequest(r *http.Request) (adminRequest, error) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apperr.Wrap(apperr.InvalidArgument, err, "malformed request body")
	}
	return req, nil
}

func grantResponse(g *admin.Grant) adminResponse {
	return adminResponse{
		OK:              true,
		AdminPinVersion: g.Version,
		Claim:           g.Claim,
		ExpiresAt:       g.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) SetPinHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAdminRequest(r)
		if err != nil {
			respondError(w, err)
			return
		}
		g, err := s.Admin.SetPin(r.Context(), principalFromContext(r), req.LeagueID, req.Pin)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, grantResponse(g))
	}
}

func (s *Server) VerifyPinHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAdminRequest(r)
		if err != nil {
			respondError(w, err)
			return
		}
		g, err := s.Admin.VerifyPin(r.Context(), principalFromContext(r), req.LeagueID, req.Pin)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, grantResponse(g))
	}
}

func (s *Server) ResetPinHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAdminRequest(r)
		if err != nil {
			respondError(w, err)
			return
		}
		g, err := s.Admin.ResetPin(r.Context(), principalFromContext(r), r.Header.Get(adminClaimHeader), req.LeagueID, req.NewPin)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, grantResponse(g))
	}
}

func (s *Server) ClearAdminHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAdminRequest(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := s.Admin.ClearAdmin(r.Context(), principalFromContext(r), r.Header.Get(adminClaimHeader), req.LeagueID); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, adminResponse{OK: true})
	}
}
