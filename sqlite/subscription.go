package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ndhoang/digestbus"
)

type subscriptionService struct {
	db *DB
}

func NewSubscriptionService(db *DB) digestbus.SubscriptionService {
	return &subscriptionService{
		db: db,
	}
}

// FindByUserID finds a subscription by user id
func (ss *subscriptionService) FindByUserID(userID string) (*digestbus.Subscription, error) {
	return ss.findBy("user_id", userID)
}

// FindByEmail finds a subscription by email
func (ss *subscriptionService) FindByEmail(email string) (*digestbus.Subscription, error) {
	return ss.findBy("email", email)
}

func (ss *subscriptionService) findBy(column, value string) (*digestbus.Subscription, error) {
	var (
		s          digestbus.Subscription
		categories string
	)
	err := ss.db.sqlDB.QueryRow(
		fmt.Sprintf("SELECT user_id, categories, frequency, email, is_active FROM subscriptions WHERE %s = ?", column), value).
		Scan(&s.UserID, &categories, &s.Frequency, &s.Email, &s.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Subscription not found
		}
		return nil, fmt.Errorf("failed to find by %s %s: %w", column, value, err)
	}

	if err := json.Unmarshal([]byte(categories), &s.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	return &s, nil
}

// Upsert writes the subscription, last write wins per user id
func (ss *subscriptionService) Upsert(s *digestbus.Subscription) error {
	categories, err := json.Marshal(s.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	_, err = ss.db.sqlDB.Exec(`INSERT INTO subscriptions (user_id, categories, frequency, email, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET categories = excluded.categories,
			frequency = excluded.frequency, email = excluded.email, is_active = excluded.is_active`,
		s.UserID, string(categories), s.Frequency, s.Email, s.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}
	return nil
}

// SetActive flips the activity gate
func (ss *subscriptionService) SetActive(userID string, active bool) error {
	res, err := ss.db.sqlDB.Exec("UPDATE subscriptions SET is_active = ? WHERE user_id = ?", active, userID)
	if err != nil {
		return fmt.Errorf("failed to update is_active: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &digestbus.Error{Code: digestbus.ErrNotFound, Message: "subscription not found"}
	}
	return nil
}
