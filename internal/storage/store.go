package storage

import (
	"errors"
	"fmt"
	"time"

	"dbwatch/internal/models"

	"gorm.io/gorm"
)

// Store wraps the backing gorm database with the entity and settings
// operations the monitoring engine consumes.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// --- Groups ---

func (s *Store) CreateGroup(group *models.Group) error {
	return s.db.Create(group).Error
}

func (s *Store) GetGroup(id uint) (*models.Group, error) {
	var group models.Group
	if err := s.db.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) ListGroups() ([]models.Group, error) {
	var groups []models.Group
	err := s.db.Order("id").Find(&groups).Error
	return groups, err
}

// --- Databases ---

func (s *Store) CreateDatabase(db *models.Database) error {
	return s.db.Create(db).Error
}

func (s *Store) GetDatabase(id uint) (*models.Database, error) {
	var database models.Database
	if err := s.db.First(&database, id).Error; err != nil {
		return nil, err
	}
	return &database, nil
}

func (s *Store) ListDatabases() ([]models.Database, error) {
	var databases []models.Database
	err := s.db.Order("id").Find(&databases).Error
	return databases, err
}

func (s *Store) ListEnabledDatabases() ([]models.Database, error) {
	var databases []models.Database
	err := s.db.Where("monitoring_enabled = ?", true).Order("id").Find(&databases).Error
	return databases, err
}

// UpdateDatabaseStatus stamps the result of a check cycle. A nil latency
// leaves the stored connection time untouched (connect failures have none).
func (s *Store) UpdateDatabaseStatus(id uint, status string, latency *int64) error {
	updates := map[string]interface{}{
		"status":        status,
		"last_check_at": time.Now(),
	}
	if latency != nil {
		updates["connection_time"] = *latency
	}
	return s.db.Model(&models.Database{}).Where("id = ?", id).Updates(updates).Error
}

// --- File systems ---

func (s *Store) CreateFileSystem(fs *models.FileSystem) error {
	return s.db.Create(fs).Error
}

func (s *Store) GetFileSystem(id uint) (*models.FileSystem, error) {
	var fs models.FileSystem
	if err := s.db.First(&fs, id).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

func (s *Store) ListFileSystems() ([]models.FileSystem, error) {
	var fileSystems []models.FileSystem
	err := s.db.Order("id").Find(&fileSystems).Error
	return fileSystems, err
}

func (s *Store) GetFileSystemsForDatabase(databaseID uint) ([]models.FileSystem, error) {
	var fileSystems []models.FileSystem
	err := s.db.Where("database_id = ?", databaseID).Order("id").Find(&fileSystems).Error
	return fileSystems, err
}

func (s *Store) UpdateFileSystemStatus(id uint, totalSpace, usedSpace int, status string) error {
	return s.db.Model(&models.FileSystem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_space":   totalSpace,
		"used_space":    usedSpace,
		"status":        status,
		"last_check_at": time.Now(),
	}).Error
}

// UpdateFileSystemCheckStatus stamps status and timestamp only, for failed
// checks where no fresh capacity numbers exist.
func (s *Store) UpdateFileSystemCheckStatus(id uint, status string) error {
	return s.db.Model(&models.FileSystem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"last_check_at": time.Now(),
	}).Error
}

// --- Thresholds ---

// CreateThreshold enforces the scope invariant: exactly one of DatabaseID
// and GroupID must be set.
func (s *Store) CreateThreshold(t *models.Threshold) error {
	if (t.DatabaseID == nil) == (t.GroupID == nil) {
		return fmt.Errorf("threshold must be scoped to exactly one of a database or a group")
	}
	return s.db.Create(t).Error
}

func (s *Store) GetThreshold(id uint) (*models.Threshold, error) {
	var t models.Threshold
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListThresholds() ([]models.Threshold, error) {
	var thresholds []models.Threshold
	err := s.db.Order("id").Find(&thresholds).Error
	return thresholds, err
}

func (s *Store) GetThresholdsForDatabase(databaseID uint) ([]models.Threshold, error) {
	var thresholds []models.Threshold
	err := s.db.Where("database_id = ?", databaseID).Find(&thresholds).Error
	return thresholds, err
}

func (s *Store) GetThresholdsForGroup(groupID uint) ([]models.Threshold, error) {
	var thresholds []models.Threshold
	err := s.db.Where("group_id = ?", groupID).Find(&thresholds).Error
	return thresholds, err
}

// --- Alerts ---

func (s *Store) CreateAlert(alert *models.Alert) error {
	return s.db.Create(alert).Error
}

func (s *Store) GetAlert(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Store) ListAlerts(limit int) ([]models.Alert, error) {
	var alerts []models.Alert
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&alerts).Error
	return alerts, err
}

// ListActiveAlerts returns unacknowledged alerts, newest first.
func (s *Store) ListActiveAlerts() ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.Where("acknowledged_at IS NULL").Order("created_at desc").Find(&alerts).Error
	return alerts, err
}

// FindUnacknowledgedAlert looks for an open alert matching the same
// target+metric+threshold, used by the suppress re-alert policy.
func (s *Store) FindUnacknowledgedAlert(databaseID, fileSystemID *uint, metricName string, thresholdID *uint) (*models.Alert, error) {
	q := s.db.Where("acknowledged_at IS NULL").Where("metric_name = ?", metricName)
	if databaseID != nil {
		q = q.Where("database_id = ?", *databaseID)
	}
	if fileSystemID != nil {
		q = q.Where("file_system_id = ?", *fileSystemID)
	} else {
		q = q.Where("file_system_id IS NULL")
	}
	if thresholdID != nil {
		q = q.Where("threshold_id = ?", *thresholdID)
	}

	var alert models.Alert
	err := q.Order("created_at desc").First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Store) AcknowledgeAlert(id, userID uint) error {
	return s.db.Model(&models.Alert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"acknowledged_by": userID,
		"acknowledged_at": time.Now(),
	}).Error
}

func (s *Store) UpdateAlertTicket(id uint, ticketID string) error {
	return s.db.Model(&models.Alert{}).Where("id = ?", id).Update("ticket_id", ticketID).Error
}

// --- Settings ---

// GetSetting returns the value for a key, empty string when unset.
func (s *Store) GetSetting(key string) (string, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Store) UpdateSetting(key, value string) error {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&models.Setting{Key: key, Value: value}).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&setting).Update("value", value).Error
}

// --- Email templates ---

func (s *Store) GetEmailTemplateByName(name string) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := s.db.Where("name = ?", name).First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// --- ITSD integration ---

// GetItsdIntegration returns the single integration row, nil when absent.
func (s *Store) GetItsdIntegration() (*models.ItsdIntegration, error) {
	var integration models.ItsdIntegration
	err := s.db.First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (s *Store) UpdateItsdIntegration(integration *models.ItsdIntegration) error {
	existing, err := s.GetItsdIntegration()
	if err != nil {
		return err
	}
	if existing == nil {
		return s.db.Create(integration).Error
	}
	integration.ID = existing.ID
	return s.db.Save(integration).Error
}
