package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ndhoang/digestbus"
)

const triggeredMessage = "Digest run triggered."

// runDigestHandler emits an immediate run for one user, outside the normal
// cadence. The workflow's activity gate still applies.
func (s *Server) runDigestHandler(w http.ResponseWriter, r *http.Request) error {
	userID := mux.Vars(r)["userID"]

	sub, err := s.SubscriptionService.FindByUserID(userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return NewError(nil, http.StatusNotFound, "subscription not found")
	}
	if !sub.IsActive {
		return NewError(nil, http.StatusConflict, "subscription is not active")
	}

	if err := s.Bus.Emit(r.Context(), digestbus.EventDigestSchedule, sub.UserID, digestbus.ScheduledRun{
		UserID:     sub.UserID,
		Categories: sub.Categories,
		Frequency:  sub.Frequency,
		Email:      sub.Email,
	}, time.Time{}); err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, &digestbus.PreferencesResponse{Message: triggeredMessage})

	return nil
}
