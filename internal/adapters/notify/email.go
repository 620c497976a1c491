// Package notify delivers price-drop alert emails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

// Notifier sends a price-drop notification. Failures are the caller's to
// log; a triggered alert stays triggered either way.
type Notifier interface {
	SendPriceDropEmail(ctx context.Context, destination string, product model.TrackedProduct, triggeredPrice decimal.Decimal) error
}

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends alerts over SMTP with bounded retry. Authentication
// failures are not retried; resending the same bad credentials cannot help.
type EmailNotifier struct {
	host     string
	port     int
	user     string
	pass     string
	from     string
	maxTries int
	delay    time.Duration
	send     sendFunc
	sleep    func(time.Duration)
	log      logger.Logger
}

// Option configures the EmailNotifier.
type Option func(*EmailNotifier)

// WithSendFunc replaces the SMTP send call, for tests.
func WithSendFunc(fn sendFunc) Option {
	return func(n *EmailNotifier) {
		if fn != nil {
			n.send = fn
		}
	}
}

// WithSleepFunc replaces the retry sleep, for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(n *EmailNotifier) {
		if fn != nil {
			n.sleep = fn
		}
	}
}

// WithRetry sets the retry attempt count and initial delay.
func WithRetry(maxTries int, delay time.Duration) Option {
	return func(n *EmailNotifier) {
		if maxTries > 0 {
			n.maxTries = maxTries
		}
		if delay > 0 {
			n.delay = delay
		}
	}
}

// NewEmailNotifier builds an SMTP-backed notifier.
func NewEmailNotifier(host string, port int, user, pass, from string, opts ...Option) *EmailNotifier {
	n := &EmailNotifier{
		host:     host,
		port:     port,
		user:     user,
		pass:     pass,
		from:     from,
		maxTries: 3,
		delay:    2 * time.Second,
		send:     smtp.SendMail,
		sleep:    time.Sleep,
		log:      logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var bodyTemplate = template.Must(template.New("price-drop").Parse(
	`Subject: Price drop: {{.Name}}
From: {{.From}}
To: {{.To}}

Good news! The price of {{.Name}} dropped to {{.Price}} {{.Currency}}.

Product page: {{.URL}}

You asked to be notified when it reached your target. This alert fires once;
create a new one to keep watching.
`))

// SendPriceDropEmail delivers one alert email with bounded exponential
// backoff. The message is assembled from the product and triggering price.
func (n *EmailNotifier) SendPriceDropEmail(ctx context.Context, destination string, product model.TrackedProduct, triggeredPrice decimal.Decimal) error {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, map[string]string{
		"Name":     product.Name,
		"From":     n.from,
		"To":       destination,
		"Price":    triggeredPrice.StringFixed(2),
		"Currency": product.Currency,
		"URL":      product.URL,
	})
	if err != nil {
		return fmt.Errorf("render alert email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}

	delay := n.delay
	var lastErr error
	for attempt := 1; attempt <= n.maxTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notify canceled: %w", err)
		}

		lastErr = n.send(addr, auth, n.from, []string{destination}, buf.Bytes())
		if lastErr == nil {
			n.log.Info(ctx, "alert email sent",
				logger.String("to", destination),
				logger.Stringer("product_id", product.ID),
			)
			return nil
		}
		if isAuthError(lastErr) {
			return fmt.Errorf("smtp auth rejected: %w", lastErr)
		}

		n.log.Warn(ctx, "smtp send failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", n.maxTries),
			logger.Error(lastErr),
		)
		if attempt < n.maxTries {
			n.sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("send alert email after %d attempts: %w", n.maxTries, lastErr)
}

// isAuthError detects SMTP authentication rejections (535 and friends).
func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "535") || strings.Contains(msg, "auth")
}

// NopNotifier discards notifications. Used when SMTP is not configured so
// alert state transitions still happen without email delivery.
type NopNotifier struct{}

// SendPriceDropEmail does nothing.
func (NopNotifier) SendPriceDropEmail(context.Context, string, model.TrackedProduct, decimal.Decimal) error {
	return nil
}
