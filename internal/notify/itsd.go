package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dbwatch/internal/models"
)

// IntegrationStore is the settings surface the ticketing client reads.
type IntegrationStore interface {
	GetItsdIntegration() (*models.ItsdIntegration, error)
}

// ITSDClient creates tickets in the external service desk for critical
// alerts. Configuration lives in the single ItsdIntegration row.
type ITSDClient struct {
	store  IntegrationStore
	client *http.Client
}

func NewITSDClient(store IntegrationStore) *ITSDClient {
	return &ITSDClient{
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether the integration is enabled with an endpoint.
func (c *ITSDClient) Configured() bool {
	integration, err := c.store.GetItsdIntegration()
	if err != nil || integration == nil {
		return false
	}
	return integration.Enabled && integration.Endpoint != ""
}

type ticketRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Metric      string `json:"metric"`
}

type ticketResponse struct {
	TicketID string `json:"ticket_id"`
	ID       string `json:"id"`
}

// CreateTicketForAlert posts the alert context and returns the external
// ticket id. A failure leaves the alert untouched; the caller only logs it.
func (c *ITSDClient) CreateTicketForAlert(alert *models.Alert, db *models.Database, fs *models.FileSystem) (string, error) {
	integration, err := c.store.GetItsdIntegration()
	if err != nil {
		return "", err
	}
	if integration == nil || !integration.Enabled || integration.Endpoint == "" {
		return "", fmt.Errorf("itsd integration not configured")
	}

	targetName := "unknown"
	if db != nil {
		targetName = db.Name
	}
	summary := fmt.Sprintf("[%s] %s: %s alert", alert.Severity, targetName, alert.MetricName)
	if fs != nil {
		summary = fmt.Sprintf("[%s] %s %s: disk alert", alert.Severity, targetName, fs.Path)
	}

	payload := ticketRequest{
		Summary:     summary,
		Description: alert.Message,
		Severity:    alert.Severity,
		Source:      "dbwatch",
		Target:      targetName,
		Metric:      alert.MetricName,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, integration.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if integration.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+integration.APIKey)
	} else if integration.Username != "" {
		req.SetBasicAuth(integration.Username, integration.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ticket creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ticketing API returned status %d", resp.StatusCode)
	}

	var ticket ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return "", fmt.Errorf("failed to parse ticket response: %w", err)
	}
	if ticket.TicketID != "" {
		return ticket.TicketID, nil
	}
	if ticket.ID != "" {
		return ticket.ID, nil
	}
	return "", fmt.Errorf("ticketing API returned no ticket id")
}
