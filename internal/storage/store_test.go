package storage

import (
	"testing"

	"dbwatch/internal/database"
	"dbwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return NewStore(db)
}

func f(v float64) *float64 { return &v }
func u(v uint) *uint       { return &v }

func TestCreateThresholdScopeInvariant(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateThreshold(&models.Threshold{
		MetricName: "cpu", CriticalThreshold: f(90), Enabled: true,
	})
	assert.Error(t, err, "threshold with no scope must be rejected")

	err = store.CreateThreshold(&models.Threshold{
		DatabaseID: u(1), GroupID: u(2),
		MetricName: "cpu", CriticalThreshold: f(90), Enabled: true,
	})
	assert.Error(t, err, "threshold with both scopes must be rejected")

	err = store.CreateThreshold(&models.Threshold{
		DatabaseID: u(1), MetricName: "cpu", CriticalThreshold: f(90), Enabled: true,
	})
	assert.NoError(t, err)

	err = store.CreateThreshold(&models.Threshold{
		GroupID: u(2), MetricName: "cpu", CriticalThreshold: f(85), Enabled: true,
	})
	assert.NoError(t, err)
}

func TestThresholdScopeQueries(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateThreshold(&models.Threshold{
		DatabaseID: u(1), MetricName: "cpu", CriticalThreshold: f(95), Enabled: true,
	}))
	require.NoError(t, store.CreateThreshold(&models.Threshold{
		GroupID: u(5), MetricName: "cpu", CriticalThreshold: f(90), Enabled: true,
	}))
	require.NoError(t, store.CreateThreshold(&models.Threshold{
		GroupID: u(5), MetricName: "memory", CriticalThreshold: f(30), Enabled: true,
	}))

	dbThresholds, err := store.GetThresholdsForDatabase(1)
	require.NoError(t, err)
	assert.Len(t, dbThresholds, 1)

	groupThresholds, err := store.GetThresholdsForGroup(5)
	require.NoError(t, err)
	assert.Len(t, groupThresholds, 2)
}

func TestListEnabledDatabases(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateDatabase(&models.Database{
		Name: "PRODDB", Host: "db1", Port: 1521, Username: "monitor", Password: "x",
		MonitoringEnabled: true,
	}))
	require.NoError(t, store.CreateDatabase(&models.Database{
		Name: "TESTDB", Host: "db2", Port: 1521, Username: "monitor", Password: "x",
		MonitoringEnabled: false,
	}))

	enabled, err := store.ListEnabledDatabases()
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "PRODDB", enabled[0].Name)
}

func TestUpdateDatabaseStatus(t *testing.T) {
	store := newTestStore(t)

	db := &models.Database{Name: "PRODDB", Host: "db1", Port: 1521, Username: "m", Password: "x", MonitoringEnabled: true}
	require.NoError(t, store.CreateDatabase(db))

	latency := int64(42)
	require.NoError(t, store.UpdateDatabaseStatus(db.ID, "warning", &latency))

	got, err := store.GetDatabase(db.ID)
	require.NoError(t, err)
	assert.Equal(t, "warning", got.Status)
	require.NotNil(t, got.ConnectionTime)
	assert.Equal(t, int64(42), *got.ConnectionTime)
	assert.NotNil(t, got.LastCheckAt)

	// Connect failures carry no latency; the stored one stays.
	require.NoError(t, store.UpdateDatabaseStatus(db.ID, "critical", nil))
	got, err = store.GetDatabase(db.ID)
	require.NoError(t, err)
	assert.Equal(t, "critical", got.Status)
	require.NotNil(t, got.ConnectionTime)
	assert.Equal(t, int64(42), *got.ConnectionTime)
}

func TestUpdateFileSystemStatus(t *testing.T) {
	store := newTestStore(t)

	fs := &models.FileSystem{DatabaseID: 1, Path: "/oracle/data"}
	require.NoError(t, store.CreateFileSystem(fs))

	require.NoError(t, store.UpdateFileSystemStatus(fs.ID, 102400, 92000, "critical"))

	got, err := store.GetFileSystem(fs.ID)
	require.NoError(t, err)
	assert.Equal(t, "critical", got.Status)
	require.NotNil(t, got.TotalSpace)
	assert.Equal(t, 102400, *got.TotalSpace)
	require.NotNil(t, got.UsedSpace)
	assert.Equal(t, 92000, *got.UsedSpace)

	// A failed probe updates status only.
	require.NoError(t, store.UpdateFileSystemCheckStatus(fs.ID, "critical"))
	got, err = store.GetFileSystem(fs.ID)
	require.NoError(t, err)
	assert.Equal(t, 92000, *got.UsedSpace)
}

func TestFindUnacknowledgedAlert(t *testing.T) {
	store := newTestStore(t)

	v := 92.0
	alert := &models.Alert{
		DatabaseID: u(1), MetricName: "cpu", MetricValue: &v, ThresholdID: u(7),
		Severity: "critical", Message: "CPU usage at 92% exceeds critical threshold (90)",
	}
	require.NoError(t, store.CreateAlert(alert))

	found, err := store.FindUnacknowledgedAlert(u(1), nil, "cpu", u(7))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, alert.ID, found.ID)

	// Different metric: no match, and no error.
	found, err = store.FindUnacknowledgedAlert(u(1), nil, "memory", nil)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Acknowledged alerts no longer match.
	require.NoError(t, store.AcknowledgeAlert(alert.ID, 3))
	found, err = store.FindUnacknowledgedAlert(u(1), nil, "cpu", u(7))
	require.NoError(t, err)
	assert.Nil(t, found)

	got, err := store.GetAlert(alert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AcknowledgedBy)
	assert.Equal(t, uint(3), *got.AcknowledgedBy)
	assert.NotNil(t, got.AcknowledgedAt)
}

func TestListActiveAlerts(t *testing.T) {
	store := newTestStore(t)

	a1 := &models.Alert{DatabaseID: u(1), MetricName: "cpu", Severity: "critical", Message: "m1"}
	a2 := &models.Alert{DatabaseID: u(1), MetricName: "memory", Severity: "warning", Message: "m2"}
	require.NoError(t, store.CreateAlert(a1))
	require.NoError(t, store.CreateAlert(a2))
	require.NoError(t, store.AcknowledgeAlert(a1.ID, 1))

	active, err := store.ListActiveAlerts()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a2.ID, active[0].ID)
}

func TestUpdateAlertTicket(t *testing.T) {
	store := newTestStore(t)

	alert := &models.Alert{DatabaseID: u(1), MetricName: "cpu", Severity: "critical", Message: "m"}
	require.NoError(t, store.CreateAlert(alert))
	require.NoError(t, store.UpdateAlertTicket(alert.ID, "ITSD-1001"))

	got, err := store.GetAlert(alert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TicketID)
	assert.Equal(t, "ITSD-1001", *got.TicketID)
}

func TestSettingsUpsert(t *testing.T) {
	store := newTestStore(t)

	value, err := store.GetSetting("email_host")
	require.NoError(t, err)
	assert.Empty(t, value, "unset setting reads as empty, not an error")

	require.NoError(t, store.UpdateSetting("email_host", "smtp.example.com"))
	require.NoError(t, store.UpdateSetting("email_host", "smtp2.example.com"))

	value, err = store.GetSetting("email_host")
	require.NoError(t, err)
	assert.Equal(t, "smtp2.example.com", value)
}

func TestSeededEmailTemplates(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"critical_alert", "warning_alert"} {
		tmpl, err := store.GetEmailTemplateByName(name)
		require.NoError(t, err)
		require.NotNil(t, tmpl, "template %s must be seeded at migration", name)
		assert.Contains(t, tmpl.Body, "{database}")
		assert.Contains(t, tmpl.Body, "{message}")
	}

	tmpl, err := store.GetEmailTemplateByName("nope")
	require.NoError(t, err)
	assert.Nil(t, tmpl)
}

func TestItsdIntegrationUpsert(t *testing.T) {
	store := newTestStore(t)

	integration, err := store.GetItsdIntegration()
	require.NoError(t, err)
	assert.Nil(t, integration)

	require.NoError(t, store.UpdateItsdIntegration(&models.ItsdIntegration{
		Endpoint: "http://itsd.example.com/tickets", Enabled: true,
	}))
	require.NoError(t, store.UpdateItsdIntegration(&models.ItsdIntegration{
		Endpoint: "http://itsd2.example.com/tickets", Enabled: false,
	}))

	integration, err = store.GetItsdIntegration()
	require.NoError(t, err)
	require.NotNil(t, integration)
	assert.Equal(t, "http://itsd2.example.com/tickets", integration.Endpoint)
	assert.False(t, integration.Enabled)

	var count int64
	require.NoError(t, store.DB().Model(&models.ItsdIntegration{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "integration stays a single row")
}
