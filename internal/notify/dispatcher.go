package notify

import (
	"sync"

	"dbwatch/internal/logger"
	"dbwatch/internal/metric"
	"dbwatch/internal/models"

	"go.uber.org/zap"
)

// Mailer sends one alert email; failures are internal and non-fatal.
type Mailer interface {
	SendAlertEmail(alert *models.Alert, db *models.Database, fs *models.FileSystem) bool
}

// Ticketer creates external tickets for critical alerts.
type Ticketer interface {
	Configured() bool
	CreateTicketForAlert(alert *models.Alert, db *models.Database, fs *models.FileSystem) (string, error)
}

// TicketStore backfills the external ticket id onto a recorded alert.
type TicketStore interface {
	UpdateAlertTicket(id uint, ticketID string) error
}

// Intent is one queued notification: an already-persisted alert plus the
// target context needed to render it.
type Intent struct {
	Alert      *models.Alert
	Database   *models.Database
	FileSystem *models.FileSystem
}

// Dispatcher drains an in-process outbox of notification intents on a
// worker goroutine, decoupling alert persistence from delivery. Email and
// ticketing are independently fallible; neither rolls back the alert.
type Dispatcher struct {
	mailer   Mailer
	ticketer Ticketer
	store    TicketStore

	queue  chan Intent
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(mailer Mailer, ticketer Ticketer, store TicketStore) *Dispatcher {
	d := &Dispatcher{
		mailer:   mailer,
		ticketer: ticketer,
		store:    store,
		queue:    make(chan Intent, 256),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for intent := range d.queue {
			d.dispatch(intent)
		}
	}()

	return d
}

// Enqueue queues an intent without blocking the check cycle. The alert is
// copied so the worker never writes to an object the caller still reads;
// the ticket id lands on the stored row, readers re-fetch for it. A full
// or closed queue drops the notification with a warning; the alert itself
// is already persisted and visible.
func (d *Dispatcher) Enqueue(intent Intent) {
	alert := *intent.Alert
	intent.Alert = &alert

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logger.Warn("Dispatcher closed, dropping notification",
			zap.Uint("alert_id", alert.ID))
		return
	}

	select {
	case d.queue <- intent:
	default:
		logger.Warn("Notification queue full, dropping notification",
			zap.Uint("alert_id", alert.ID))
	}
}

// Close drains the outbox and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(intent Intent) {
	alert := intent.Alert

	// Ticket first so the email can reference the ticket id.
	if alert.Severity == string(metric.SeverityCritical) && d.ticketer != nil && d.ticketer.Configured() {
		ticketID, err := d.ticketer.CreateTicketForAlert(alert, intent.Database, intent.FileSystem)
		if err != nil {
			logger.Error("Failed to create ticket for alert",
				zap.Uint("alert_id", alert.ID),
				zap.Error(err))
		} else if ticketID != "" {
			if err := d.store.UpdateAlertTicket(alert.ID, ticketID); err != nil {
				logger.Error("Failed to backfill ticket id",
					zap.Uint("alert_id", alert.ID),
					zap.String("ticket_id", ticketID),
					zap.Error(err))
			} else {
				alert.TicketID = &ticketID
				logger.Info("Ticket created for alert",
					zap.Uint("alert_id", alert.ID),
					zap.String("ticket_id", ticketID))
			}
		}
	}

	if d.mailer != nil {
		d.mailer.SendAlertEmail(alert, intent.Database, intent.FileSystem)
	}
}
