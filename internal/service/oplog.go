package service

import (
	"encoding/json"
	"time"

	"license-activation-service/internal/model"

	"gorm.io/gorm"
)

// AuditLog records administrative mutations. Failures here never fail the
// operation being audited.
type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) Record(userID uint, action, licenseKey string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	entry := &model.OperationLog{
		UserID:     userID,
		Action:     action,
		LicenseKey: licenseKey,
		Details:    string(detailsJSON),
		CreatedAt:  time.Now(),
	}
	return a.db.Create(entry).Error
}

// Recent returns a page of operation log entries, newest first.
func (a *AuditLog) Recent(page, pageSize int) ([]model.OperationLog, int64, error) {
	var entries []model.OperationLog
	var total int64

	if err := a.db.Model(&model.OperationLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := a.db.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
