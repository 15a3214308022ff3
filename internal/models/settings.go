package models

import "time"

// Setting is a flat key/value configuration row (mail server, recipients, ...).
type Setting struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Key         string `gorm:"size:255;not null;uniqueIndex" json:"key"`
	Value       string `gorm:"type:text" json:"value"`
	Description string `gorm:"type:text" json:"description"`
}

func (Setting) TableName() string {
	return "settings"
}

// Setting keys consumed by the notifier.
const (
	SettingEmailHost       = "email_host"
	SettingEmailPort       = "email_port"
	SettingEmailUser       = "email_user"
	SettingEmailPassword   = "email_password"
	SettingEmailFrom       = "email_from"
	SettingAlertRecipients = "alert_recipients"
)

// EmailTemplate is a named subject/body pair with {placeholder} slots.
type EmailTemplate struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Subject string `gorm:"size:500;not null" json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

// ItsdIntegration holds the external ticketing endpoint configuration.
// A single row is expected.
type ItsdIntegration struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Endpoint string `gorm:"size:500;not null" json:"endpoint"`
	APIKey   string `gorm:"size:255" json:"api_key"`
	Username string `gorm:"size:255" json:"username"`
	Password string `gorm:"size:255" json:"-"`
	Enabled  bool   `gorm:"default:false" json:"enabled"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

func (ItsdIntegration) TableName() string {
	return "itsd_integration"
}
