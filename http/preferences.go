package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"github.com/ndhoang/digestbus"
)

const (
	savedMessage       = "Preferences saved. Your first digest is on its way."
	pausedMessage      = "Your digest is paused. You can reactivate it at any time."
	reactivatedMessage = "Welcome back. Your next digest has been scheduled."
)

func (s *Server) preferencesHandler(w http.ResponseWriter, r *http.Request) error {
	var req digestbus.PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return NewError(err, http.StatusBadRequest, "invalid request body")
	}

	sub := digestbus.NewSubscription(req.UserID, req.Categories, req.Frequency, req.Email)
	if err := sub.Validate(); err != nil {
		return NewError(err, http.StatusBadRequest, digestbus.ErrorMessage(err))
	}

	logger := hlog.FromRequest(r)

	existing, err := s.SubscriptionService.FindByUserID(sub.UserID)
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", sub.UserID).Msg("saving preferences")
	if err := s.SubscriptionService.Upsert(sub); err != nil {
		return err
	}

	if existing == nil {
		if err := s.NewsletterService.SendWelcomeEmail(sub.Email); err != nil {
			// The subscription stands even if the welcome mail bounces.
			logger.Error().Err(err).Msg("failed to send welcome email")
		}
	}

	// Immediate first run. Emitting with the user id as key supersedes any
	// pending run, so repeated POSTs never accumulate duplicate chains.
	if err := s.Bus.Emit(r.Context(), digestbus.EventDigestSchedule, sub.UserID, digestbus.ScheduledRun{
		UserID:     sub.UserID,
		Categories: sub.Categories,
		Frequency:  sub.Frequency,
		Email:      sub.Email,
	}, time.Time{}); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &digestbus.PreferencesResponse{Message: savedMessage})

	return nil
}

func (s *Server) getPreferencesHandler(w http.ResponseWriter, r *http.Request) error {
	userID := mux.Vars(r)["userID"]

	sub, err := s.SubscriptionService.FindByUserID(userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return NewError(nil, http.StatusNotFound, "subscription not found")
	}

	writeJSONResponse(w, http.StatusOK, sub)

	return nil
}

func (s *Server) setActiveHandler(w http.ResponseWriter, r *http.Request) error {
	userID := mux.Vars(r)["userID"]

	var req digestbus.ActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return NewError(err, http.StatusBadRequest, "invalid request body")
	}

	logger := hlog.FromRequest(r)

	if !req.IsActive {
		return s.deactivate(w, r, userID)
	}

	if err := s.SubscriptionService.SetActive(userID, true); err != nil {
		if digestbus.ErrorCode(err) == digestbus.ErrNotFound {
			return NewError(err, http.StatusNotFound, "subscription not found")
		}
		return err
	}

	sub, err := s.SubscriptionService.FindByUserID(userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return NewError(nil, http.StatusNotFound, "subscription not found")
	}

	next := s.ReactivationSchedule.Next(s.Now(), sub.Frequency)
	logger.Info().Str("user_id", userID).Time("fire_at", next).Msg("reactivating subscription")
	if err := s.Bus.Emit(r.Context(), digestbus.EventDigestSchedule, userID, digestbus.ScheduledRun{
		UserID:     sub.UserID,
		Categories: sub.Categories,
		Frequency:  sub.Frequency,
		Email:      sub.Email,
	}, next); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &digestbus.PreferencesResponse{Message: reactivatedMessage})

	return nil
}

// deactivate flips the activity gate off and suppresses the pending run.
// The workflow's own activity re-check covers the window where the run has
// already been dispatched.
func (s *Server) deactivate(w http.ResponseWriter, r *http.Request, userID string) error {
	if err := s.SubscriptionService.SetActive(userID, false); err != nil {
		if digestbus.ErrorCode(err) == digestbus.ErrNotFound {
			return NewError(err, http.StatusNotFound, "subscription not found")
		}
		return err
	}

	hlog.FromRequest(r).Info().Str("user_id", userID).Msg("cancelling pending run")
	if err := s.Bus.Cancel(digestbus.EventDigestSchedule, digestbus.MatchUserID(userID)); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &digestbus.PreferencesResponse{Message: pausedMessage})

	return nil
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(response)
}
