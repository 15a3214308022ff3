package notify

import (
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"dbwatch/internal/logger"
	"dbwatch/internal/metric"
	"dbwatch/internal/models"

	"go.uber.org/zap"
)

// Transport delivers a single email. Injected so tests can substitute a
// fake without touching process-wide state.
type Transport interface {
	Send(to []string, subject, html string) error
}

// SMTPTransport sends through a plain SMTP server.
type SMTPTransport struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (t *SMTPTransport) Send(to []string, subject, html string) error {
	addr := fmt.Sprintf("%s:%d", t.Host, t.Port)
	auth := smtp.PlainAuth("", t.Username, t.Password, t.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		t.From, strings.Join(to, ", "), subject, html)

	return smtp.SendMail(addr, auth, t.From, to, []byte(msg))
}

// SettingsStore is the settings/template surface the emailer reads.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	GetEmailTemplateByName(name string) (*models.EmailTemplate, error)
}

// NewSMTPTransportFromSettings builds a transport from the stored mail
// settings. Returns nil (no error) when the configuration is incomplete;
// emailing is then disabled.
func NewSMTPTransportFromSettings(store SettingsStore) (Transport, error) {
	host, err := store.GetSetting(models.SettingEmailHost)
	if err != nil {
		return nil, err
	}
	portStr, err := store.GetSetting(models.SettingEmailPort)
	if err != nil {
		return nil, err
	}
	user, err := store.GetSetting(models.SettingEmailUser)
	if err != nil {
		return nil, err
	}
	pass, err := store.GetSetting(models.SettingEmailPassword)
	if err != nil {
		return nil, err
	}
	from, err := store.GetSetting(models.SettingEmailFrom)
	if err != nil {
		return nil, err
	}

	if host == "" || portStr == "" || user == "" || pass == "" {
		logger.Warn("Email settings not configured completely, email delivery disabled")
		return nil, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid email_port %q: %w", portStr, err)
	}
	if from == "" {
		from = "dbwatch <noreply@example.com>"
	}

	return &SMTPTransport{Host: host, Port: port, Username: user, Password: pass, From: from}, nil
}

// Emailer renders severity-specific templates and hands them to the
// transport. All failures are non-fatal to the caller.
type Emailer struct {
	store     SettingsStore
	transport Transport
}

func NewEmailer(store SettingsStore, transport Transport) *Emailer {
	return &Emailer{store: store, transport: transport}
}

// SendAlertEmail delivers one alert notification. Returns false when the
// email was skipped or delivery failed; both are logged, never fatal.
func (e *Emailer) SendAlertEmail(alert *models.Alert, db *models.Database, fs *models.FileSystem) bool {
	if e.transport == nil {
		logger.Warn("Email transport not configured, skipping alert email",
			zap.Uint("alert_id", alert.ID))
		return false
	}

	recipients, err := e.store.GetSetting(models.SettingAlertRecipients)
	if err != nil {
		logger.Error("Failed to read alert recipients", zap.Error(err))
		return false
	}
	if recipients == "" {
		logger.Warn("No alert recipients configured, skipping alert email")
		return false
	}

	templateName := "warning_alert"
	if alert.Severity == string(metric.SeverityCritical) {
		templateName = "critical_alert"
	}
	tmpl, err := e.store.GetEmailTemplateByName(templateName)
	if err != nil {
		logger.Error("Failed to load email template", zap.String("template", templateName), zap.Error(err))
		return false
	}
	if tmpl == nil {
		logger.Warn("Email template not found, skipping alert email",
			zap.String("template", templateName))
		return false
	}

	subject := substitute(tmpl.Subject, alert, db, fs)
	body := substitute(tmpl.Body, alert, db, fs)

	var to []string
	for _, addr := range strings.Split(recipients, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, addr)
		}
	}

	if err := e.transport.Send(to, subject, body); err != nil {
		logger.Error("Failed to send alert email",
			zap.Uint("alert_id", alert.ID),
			zap.Error(err))
		return false
	}

	logger.Info("Alert email sent",
		zap.Uint("alert_id", alert.ID),
		zap.String("severity", alert.Severity))
	return true
}

// substitute fills the {placeholder} slots of a template.
func substitute(text string, alert *models.Alert, db *models.Database, fs *models.FileSystem) string {
	dbName := "Unknown Database"
	if db != nil {
		dbName = db.Name
	}

	value := "N/A"
	if alert.MetricValue != nil {
		value = metric.FormatValue(*alert.MetricValue)
	}

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ticketID := "No ticket created yet"
	if alert.TicketID != nil && *alert.TicketID != "" {
		ticketID = *alert.TicketID
	}

	pairs := []string{
		"{database}", dbName,
		"{metric}", alert.MetricName,
		"{value}", value,
		"{message}", alert.Message,
		"{time}", createdAt.Format("2006-01-02 15:04:05"),
		"{severity}", strings.ToUpper(alert.Severity),
		"{ticket_id}", ticketID,
	}
	if fs != nil {
		pairs = append(pairs, "{filesystem}", fs.Path)
	}

	return strings.NewReplacer(pairs...).Replace(text)
}
