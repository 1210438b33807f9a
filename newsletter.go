package digestbus

// NewsletterService is the interface that wraps methods related to outbound email
type NewsletterService interface {
	SendWelcomeEmail(to string) error
	SendDigest(to string, categories []string, articleCount int, htmlBody string) error
	UnsubscribeURL(email string) (string, error)
	GetHMACSecret() string
}
