package http

import (
	"net/http"

	"github.com/ndhoang/digestbus"
	"github.com/ndhoang/digestbus/pkg/hash"
)

const (
	unsubscribeMessage        = "Unsubscribed"
	invalidUnsubscribeMessage = "Either email or hash is invalid."
)

func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) error {
	var response struct {
		Message string `json:"message"`
	}

	query := r.URL.Query()
	email := query.Get("email")
	hashValue := query.Get("hash")
	expectedHash, err := hash.ComputeHmac256(email, s.NewsletterService.GetHMACSecret())
	if err != nil {
		return err
	}

	if hashValue != expectedHash {
		response.Message = invalidUnsubscribeMessage
		writeJSONResponse(w, http.StatusBadRequest, response)
		return nil
	}

	sub, err := s.SubscriptionService.FindByEmail(email)
	if err != nil {
		return err
	}
	if sub == nil {
		return NewError(nil, http.StatusNotFound, "subscription not found")
	}

	if err := s.SubscriptionService.SetActive(sub.UserID, false); err != nil {
		return err
	}

	if err := s.Bus.Cancel(digestbus.EventDigestSchedule, digestbus.MatchUserID(sub.UserID)); err != nil {
		return err
	}

	response.Message = unsubscribeMessage
	writeJSONResponse(w, http.StatusOK, response)

	return nil
}
