package gmail

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/matcornic/hermes/v2"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/ndhoang/digestbus"
	"github.com/ndhoang/digestbus/pkg/hash"
)

type newsletterService struct {
	ServerURL string
	*digestbus.Config
}

// NewNewsletterService returns new newsletter service
func NewNewsletterService(config *digestbus.Config, serverURL string) digestbus.NewsletterService {
	return &newsletterService{
		Config:    config,
		ServerURL: serverURL,
	}
}

// SendWelcomeEmail greets a user after their first subscription
func (ns *newsletterService) SendWelcomeEmail(to string) error {
	h := hermes.Hermes{
		Product: hermes.Product{
			Name: ns.Config.Newsletter.Product.Name,
			Link: ns.ServerURL,
		},
	}

	email := hermes.Email{
		Body: hermes.Body{
			Name: "",
			Intros: []string{
				fmt.Sprintf("Welcome to %s", ns.Config.Newsletter.Product.Name),
				"Your personalized digest is on its way. You can pause it at any time from the unsubscribe link in each issue.",
			},
		},
	}

	emailBody, err := h.GenerateHTML(email)
	if err != nil {
		return errors.Errorf("failed to generate HTML email: %v", err)
	}

	return ns.sendEmail(to, fmt.Sprintf("Welcome to %s", ns.Config.Newsletter.Product.Name), emailBody)
}

// SendDigest sends one generated digest. The body is an already-rendered
// HTML fragment; only the unsubscribe footer is appended here.
func (ns *newsletterService) SendDigest(to string, categories []string, articleCount int, htmlBody string) error {
	unsubscribe, err := ns.UnsubscribeURL(to)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your %s digest: %s (%d articles)",
		ns.Config.Newsletter.Product.Name, strings.Join(categories, ", "), articleCount)

	body := fmt.Sprintf(`%s<hr/><p><a href=%q>Unsubscribe</a></p>`, htmlBody, unsubscribe)

	return ns.sendEmail(to, subject, body)
}

// UnsubscribeURL builds the signed one-click unsubscribe link for an email
func (ns *newsletterService) UnsubscribeURL(email string) (string, error) {
	hashValue, err := hash.ComputeHmac256(email, ns.GetHMACSecret())
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/unsubscribe?email=%s&hash=%s",
		ns.ServerURL, url.QueryEscape(email), url.QueryEscape(hashValue)), nil
}

func (ns *newsletterService) sendEmail(to string, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", ns.Config.Newsletter.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	d := gomail.NewDialer(ns.Config.SMTP.Host, ns.Config.SMTP.Port, ns.Config.SMTP.Username, ns.Config.SMTP.Password)
	if err := d.DialAndSend(m); err != nil {
		return errors.Errorf("failed to send mail to %s: %v", to, err)
	}

	return nil
}

// GetHMACSecret gets HMAC secret from config
func (ns *newsletterService) GetHMACSecret() string {
	return ns.Config.Newsletter.HMAC.Secret
}
