package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ndhoang/digestbus"
	"github.com/ndhoang/digestbus/mock"
	"github.com/ndhoang/digestbus/pkg/hash"
)

var (
	cfg *digestbus.Config
	s   *Server
)

var testNow = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	viper.SetConfigType("yaml")
	var yamlConfig = []byte(`
newsletter:
  hmac:
    secret: da02e221bc331c9875c5e1299fa8d765
  reactivation:
    hour: 17
    minute: 8
    biweeklydays: 3
`)
	if err := viper.ReadConfig(bytes.NewBuffer(yamlConfig)); err != nil {
		log.Fatal(err)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatal(err)
	}

	var err error
	s, err = NewServer()
	if err != nil {
		log.Fatal(err)
	}
	s.ReactivationSchedule = cfg.Newsletter.Reactivation
	s.Now = func() time.Time { return testNow }

	os.Exit(m.Run())
}

func TestPreferencesHandler(t *testing.T) {
	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, "a@x.com")

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("FindByUserID", "u1").Return(nil, nil)
	subscriptionService.On("Upsert", sub).Return(nil)

	newsletterService := new(mock.NewsletterService)
	newsletterService.On("SendWelcomeEmail", "a@x.com").Return(nil)

	bus := new(mock.EventBus)
	bus.On("Emit", tmock.Anything, digestbus.EventDigestSchedule, "u1", digestbus.ScheduledRun{
		UserID:     "u1",
		Categories: []string{"technology"},
		Frequency:  digestbus.FrequencyWeekly,
		Email:      "a@x.com",
	}, time.Time{}).Return(nil)

	s.SubscriptionService = subscriptionService
	s.NewsletterService = newsletterService
	s.Bus = bus

	data, err := json.Marshal(&digestbus.PreferencesRequest{
		UserID:     "u1",
		Categories: []string{"technology"},
		Frequency:  digestbus.FrequencyWeekly,
		Email:      "a@x.com",
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/preferences", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp digestbus.PreferencesResponse
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&resp))
	assert.Equal(t, savedMessage, resp.Message)

	subscriptionService.AssertExpectations(t)
	newsletterService.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestPreferencesHandlerNoWelcomeEmailOnUpdate(t *testing.T) {
	existing := digestbus.NewSubscription("u1", []string{"science"}, digestbus.FrequencyDaily, "a@x.com")
	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, "a@x.com")

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("FindByUserID", "u1").Return(existing, nil)
	subscriptionService.On("Upsert", sub).Return(nil)

	newsletterService := new(mock.NewsletterService)

	bus := new(mock.EventBus)
	bus.On("Emit", tmock.Anything, digestbus.EventDigestSchedule, "u1", tmock.Anything, time.Time{}).Return(nil)

	s.SubscriptionService = subscriptionService
	s.NewsletterService = newsletterService
	s.Bus = bus

	data, err := json.Marshal(&digestbus.PreferencesRequest{
		UserID:     "u1",
		Categories: []string{"technology"},
		Frequency:  digestbus.FrequencyWeekly,
		Email:      "a@x.com",
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/preferences", bytes.NewReader(data))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	newsletterService.AssertNotCalled(t, "SendWelcomeEmail", tmock.Anything)
}

func TestPreferencesHandlerRejectsInvalid(t *testing.T) {
	bus := new(mock.EventBus)
	s.SubscriptionService = new(mock.SubscriptionService)
	s.NewsletterService = new(mock.NewsletterService)
	s.Bus = bus

	tests := []struct {
		name string
		req  *digestbus.PreferencesRequest
	}{
		{"empty categories", &digestbus.PreferencesRequest{UserID: "u1", Frequency: "weekly", Email: "a@x.com"}},
		{"bad frequency", &digestbus.PreferencesRequest{UserID: "u1", Categories: []string{"technology"}, Frequency: "monthly", Email: "a@x.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.req)
			require.NoError(t, err)
			req, err := http.NewRequest(http.MethodPost, "/preferences", bytes.NewReader(data))
			require.NoError(t, err)

			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			// Configuration errors never reach the bus.
			bus.AssertNotCalled(t, "Emit", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
		})
	}
}

func TestDeactivateCancelsPendingRun(t *testing.T) {
	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("SetActive", "u1", false).Return(nil)

	bus := new(mock.EventBus)
	bus.On("Cancel", digestbus.EventDigestSchedule, tmock.Anything).Return(nil)

	s.SubscriptionService = subscriptionService
	s.Bus = bus

	req, err := http.NewRequest(http.MethodPatch, "/preferences/u1", bytes.NewReader([]byte(`{"is_active": false}`)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	subscriptionService.AssertExpectations(t)
	bus.AssertExpectations(t)
	bus.AssertNotCalled(t, "Emit", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestReactivateSchedulesNextRun(t *testing.T) {
	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, "a@x.com")

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("SetActive", "u1", true).Return(nil)
	subscriptionService.On("FindByUserID", "u1").Return(sub, nil)

	next := time.Date(2024, time.March, 11, 17, 8, 0, 0, time.UTC)
	bus := new(mock.EventBus)
	bus.On("Emit", tmock.Anything, digestbus.EventDigestSchedule, "u1", digestbus.ScheduledRun{
		UserID:     "u1",
		Categories: []string{"technology"},
		Frequency:  digestbus.FrequencyWeekly,
		Email:      "a@x.com",
	}, next).Return(nil)

	s.SubscriptionService = subscriptionService
	s.Bus = bus

	req, err := http.NewRequest(http.MethodPatch, "/preferences/u1", bytes.NewReader([]byte(`{"is_active": true}`)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	bus.AssertExpectations(t)
}

func TestUnsubscribeHandler(t *testing.T) {
	email := "a@x.com"
	secret := cfg.Newsletter.HMAC.Secret
	hashValue, err := hash.ComputeHmac256(email, secret)
	require.NoError(t, err)

	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, email)

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("FindByEmail", email).Return(sub, nil)
	subscriptionService.On("SetActive", "u1", false).Return(nil)

	newsletterService := new(mock.NewsletterService)
	newsletterService.On("GetHMACSecret").Return(secret)

	bus := new(mock.EventBus)
	bus.On("Cancel", digestbus.EventDigestSchedule, tmock.Anything).Return(nil)

	s.SubscriptionService = subscriptionService
	s.NewsletterService = newsletterService
	s.Bus = bus

	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("/unsubscribe?email=%s&hash=%s", url.QueryEscape(email), url.QueryEscape(hashValue)), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp digestbus.PreferencesResponse
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&resp))
	assert.Equal(t, unsubscribeMessage, resp.Message)

	subscriptionService.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestUnsubscribeHandlerRejectsBadHash(t *testing.T) {
	subscriptionService := new(mock.SubscriptionService)
	newsletterService := new(mock.NewsletterService)
	newsletterService.On("GetHMACSecret").Return(cfg.Newsletter.HMAC.Secret)

	s.SubscriptionService = subscriptionService
	s.NewsletterService = newsletterService
	s.Bus = new(mock.EventBus)

	req, err := http.NewRequest(http.MethodGet, "/unsubscribe?email=a@x.com&hash=bogus", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	subscriptionService.AssertNotCalled(t, "SetActive", tmock.Anything, tmock.Anything)
}

func TestRunDigestHandler(t *testing.T) {
	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, "a@x.com")

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("FindByUserID", "u1").Return(sub, nil)

	bus := new(mock.EventBus)
	bus.On("Emit", tmock.Anything, digestbus.EventDigestSchedule, "u1", tmock.Anything, time.Time{}).Return(nil)

	s.SubscriptionService = subscriptionService
	s.Bus = bus

	req, err := http.NewRequest(http.MethodPost, "/digests/u1/run", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	bus.AssertExpectations(t)
}

func TestRunDigestHandlerRejectsInactive(t *testing.T) {
	sub := digestbus.NewSubscription("u1", []string{"technology"}, digestbus.FrequencyWeekly, "a@x.com")
	sub.IsActive = false

	subscriptionService := new(mock.SubscriptionService)
	subscriptionService.On("FindByUserID", "u1").Return(sub, nil)

	bus := new(mock.EventBus)

	s.SubscriptionService = subscriptionService
	s.Bus = bus

	req, err := http.NewRequest(http.MethodPost, "/digests/u1/run", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	bus.AssertNotCalled(t, "Emit", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}
