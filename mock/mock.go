package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ndhoang/digestbus"
)

type SubscriptionService struct {
	mock.Mock
}

func (m *SubscriptionService) FindByUserID(userID string) (*digestbus.Subscription, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*digestbus.Subscription), args.Error(1)
}

func (m *SubscriptionService) FindByEmail(email string) (*digestbus.Subscription, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*digestbus.Subscription), args.Error(1)
}

func (m *SubscriptionService) Upsert(s *digestbus.Subscription) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *SubscriptionService) SetActive(userID string, active bool) error {
	args := m.Called(userID, active)
	return args.Error(0)
}

type NewsletterService struct {
	mock.Mock
}

func (m *NewsletterService) SendWelcomeEmail(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *NewsletterService) SendDigest(to string, categories []string, articleCount int, htmlBody string) error {
	args := m.Called(to, categories, articleCount, htmlBody)
	return args.Error(0)
}

func (m *NewsletterService) UnsubscribeURL(email string) (string, error) {
	args := m.Called(email)
	return args.String(0), args.Error(1)
}

func (m *NewsletterService) GetHMACSecret() string {
	args := m.Called()
	return args.String(0)
}

type ContentProvider struct {
	mock.Mock
}

func (m *ContentProvider) Fetch(ctx context.Context, categories []string) ([]digestbus.Article, error) {
	args := m.Called(ctx, categories)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]digestbus.Article), args.Error(1)
}

type Summarizer struct {
	mock.Mock
}

func (m *Summarizer) Summarize(ctx context.Context, articles []digestbus.Article, categories []string) (string, error) {
	args := m.Called(ctx, articles, categories)
	return args.String(0), args.Error(1)
}

type EventBus struct {
	mock.Mock
}

func (m *EventBus) Emit(ctx context.Context, name, key string, payload interface{}, fireAt time.Time) error {
	args := m.Called(ctx, name, key, payload, fireAt)
	return args.Error(0)
}

func (m *EventBus) Cancel(name string, match digestbus.Predicate) error {
	args := m.Called(name, match)
	return args.Error(0)
}

func (m *EventBus) OnEvent(name string, h digestbus.Handler) {
	m.Called(name, h)
}
