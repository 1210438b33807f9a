package bolt

import (
	"github.com/asdine/storm/v3"
	"github.com/go-errors/errors"

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

// FindByUserID finds a subscription by user id; a missing row is (nil, nil)
func (ss *subscriptionService) FindByUserID(userID string) (*digestbus.Subscription, error) {
	var s digestbus.Subscription
	if err := ss.db.stormDB.One("UserID", userID, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Errorf("failed to find by user id: %v", err)
	}

	return &s, nil
}

// FindByEmail finds a subscription by email
func (ss *subscriptionService) FindByEmail(email string) (*digestbus.Subscription, error) {
	var s digestbus.Subscription
	if err := ss.db.stormDB.One("Email", email, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Errorf("failed to find by email: %v", err)
	}

	return &s, nil
}

// Upsert writes the subscription, last write wins per user id
func (ss *subscriptionService) Upsert(s *digestbus.Subscription) error {
	if err := ss.db.stormDB.Save(s); err != nil {
		return errors.Errorf("failed to save: %v", err)
	}

	return nil
}

// SetActive flips the activity gate; deactivation is a flag, never a delete
func (ss *subscriptionService) SetActive(userID string, active bool) error {
	s, err := ss.FindByUserID(userID)
	if err != nil {
		return err
	}
	if s == nil {
		return &digestbus.Error{Code: digestbus.ErrNotFound, Message: "subscription not found"}
	}

	s.IsActive = active
	if err := ss.db.stormDB.Save(s); err != nil {
		return errors.Errorf("failed to save: %v", err)
	}

	return nil
}
