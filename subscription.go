package digestbus

// SubscriptionService is the interface that wraps methods related to the preference store
type SubscriptionService interface {
	FindByUserID(userID string) (*Subscription, error)
	FindByEmail(email string) (*Subscription, error)
	Upsert(s *Subscription) error
	SetActive(userID string, active bool) error
}

// Frequency values
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
)

// Subscription represents one user's digest preferences.
// The store is the single source of truth for IsActive: scheduled run
// payloads are snapshots and the workflow re-reads this at execution time.
type Subscription struct {
	UserID     string   `storm:"id" json:"user_id"`
	Categories []string `json:"categories"`
	Frequency  string   `json:"frequency"`
	Email      string   `storm:"index" json:"email"`
	IsActive   bool     `json:"is_active"`
}

// NewSubscription returns a new active subscription
func NewSubscription(userID string, categories []string, frequency, email string) *Subscription {
	return &Subscription{
		UserID:     userID,
		Categories: categories,
		Frequency:  frequency,
		Email:      email,
		IsActive:   true,
	}
}

// Validate rejects configuration errors before they reach the bus
func (s *Subscription) Validate() error {
	if s.UserID == "" {
		return &Error{Code: ErrInvalid, Message: "user_id is required"}
	}
	if len(s.Categories) == 0 {
		return &Error{Code: ErrInvalid, Message: "categories must not be empty"}
	}
	switch s.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly:
	default:
		return &Error{Code: ErrInvalid, Message: "frequency must be one of daily, weekly, biweekly"}
	}
	if s.Email == "" {
		return &Error{Code: ErrInvalid, Message: "email is required"}
	}
	return nil
}

type PreferencesRequest struct {
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories"`
	Frequency  string   `json:"frequency"`
	Email      string   `json:"email"`
}

type ActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type PreferencesResponse struct {
	Message string `json:"message"`
}
