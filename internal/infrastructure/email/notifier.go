package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/ports"
)

// NotifierConfig holds the upgrade notifier configuration.
type NotifierConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	CompanyName    string
	UpgradeURL     string
}

// UpgradeNotifier emails free-tier users when they exhaust the daily
// quota. A cache entry keyed by identity deduplicates: at most one email
// per window, even when the user keeps hitting the limit.
type UpgradeNotifier struct {
	config *NotifierConfig
	users  ports.UserRepository
	cache  ports.Cache
	logger *logrus.Logger
	client *sendgrid.Client
	tmpl   *template.Template
}

const saturationTemplate = `<html>
<body>
	<p>Olá {{.UserName}},</p>
	<p>Você atingiu o limite diário de {{.Limit}} consultas do plano gratuito.
	Seu limite será renovado em {{.ResetIn}}.</p>
	<p>Com o plano Premium você tem consultas ilimitadas às licitações do PNCP.</p>
	<p><a href="{{.UpgradeURL}}">Conheça o plano Premium</a></p>
	<p>{{.CompanyName}}</p>
</body>
</html>`

func NewUpgradeNotifier(config *NotifierConfig, users ports.UserRepository, cache ports.Cache, logger *logrus.Logger) (ports.UpgradeNotifier, error) {
	tmpl, err := template.New("saturation").Parse(saturationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saturation template: %w", err)
	}

	return &UpgradeNotifier{
		config: config,
		users:  users,
		cache:  cache,
		logger: logger,
		client: sendgrid.NewSendClient(config.SendGridAPIKey),
		tmpl:   tmpl,
	}, nil
}

type saturationEmailData struct {
	CompanyName string
	UserName    string
	Limit       int
	ResetIn     string
	UpgradeURL  string
}

// NotifySaturated sends the upgrade nudge for a saturated identity.
// Anonymous identities have no address to write to and are skipped.
func (n *UpgradeNotifier) NotifySaturated(ctx context.Context, identity quota.Identity, verdict quota.Verdict) error {
	if identity.UserID == nil {
		return nil
	}

	dedupKey := "upgrade-nudge:" + identity.Key()
	if n.cache != nil {
		if _, ok, err := n.cache.Get(ctx, dedupKey); err == nil && ok {
			return nil
		}
	}

	u, err := n.users.GetByID(ctx, *identity.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user for upgrade nudge: %w", err)
	}

	data := saturationEmailData{
		CompanyName: n.config.CompanyName,
		UserName:    u.Name,
		Limit:       verdict.Limit,
		ResetIn:     quota.FormatUntilReset(time.Now(), verdict.ResetAt),
		UpgradeURL:  n.config.UpgradeURL,
	}

	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render saturation email: %w", err)
	}

	subject := fmt.Sprintf("Limite diário de consultas atingido - %s", n.config.CompanyName)
	if err := n.sendEmail(u.Email, subject, buf.String()); err != nil {
		return err
	}

	if n.cache != nil {
		if ttl := time.Until(verdict.ResetAt); ttl > 0 {
			_ = n.cache.Set(ctx, dedupKey, []byte("1"), ttl)
		}
	}
	return nil
}

func (n *UpgradeNotifier) sendEmail(to, subject, htmlContent string) error {
	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	recipient := mail.NewEmail("", to)

	message := mail.NewSingleEmail(from, subject, recipient, "", htmlContent)

	response, err := n.client.Send(message)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
			"error":   err,
		}).Error("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"to":          to,
		"subject":     subject,
		"status_code": response.StatusCode,
	}).Info("Email sent successfully")

	return nil
}
