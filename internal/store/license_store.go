package store

import (
	"context"
	"errors"
	"strings"

	"license-activation-service/internal/model"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("license not found")
	ErrDuplicateKey = errors.New("license key already exists")
)

// LicenseStore is the durable record of every license and its activation
// history. All multi-statement mutations run inside a transaction so a
// status change and its audit row land together or not at all.
type LicenseStore struct {
	db *gorm.DB
}

func NewLicenseStore(db *gorm.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

// Create inserts a license in unused status. A key collision is reported as
// ErrDuplicateKey so the caller can retry with a fresh key.
func (s *LicenseStore) Create(lic *model.License) error {
	if err := s.db.Create(lic).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *LicenseStore) Get(key string) (*model.License, error) {
	var lic model.License
	err := s.db.Where("key = ?", key).First(&lic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lic, nil
}

// GetWithActivations returns a license together with its audit trail,
// newest activation first.
func (s *LicenseStore) GetWithActivations(key string) (*model.License, []model.ActivationRecord, error) {
	lic, err := s.Get(key)
	if err != nil {
		return nil, nil, err
	}
	var records []model.ActivationRecord
	err = s.db.Where("license_key = ?", key).
		Order("activated_at desc").
		Find(&records).Error
	if err != nil {
		return nil, nil, err
	}
	return lic, records, nil
}

// List returns every license, newest first.
func (s *LicenseStore) List() ([]model.License, error) {
	var licenses []model.License
	err := s.db.Order("created_at desc").Find(&licenses).Error
	return licenses, err
}

// ClaimUnused performs the first-activation binding transition. The status
// update is a single conditional statement guarded on status='unused', so
// of two concurrent claimants exactly one observes a row change; the loser
// gets claimed=false and must re-read the license. The device binding and
// the audit row commit in the same transaction as the status flip.
func (s *LicenseStore) ClaimUnused(key, fingerprintHash string, activatedAt, expiresAt int64, rec *model.ActivationRecord) (bool, error) {
	claimed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.License{}).
			Where("key = ? AND status = ?", key, model.StatusUnused).
			Updates(map[string]interface{}{
				"status":            model.StatusActive,
				"activated_at":      activatedAt,
				"expires_at":        expiresAt,
				"bound_fingerprint": fingerprintHash,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		binding := &model.DeviceBinding{
			LicenseKey:      key,
			FingerprintHash: fingerprintHash,
			BoundAt:         activatedAt,
		}
		if err := tx.Create(binding).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// BindDevice claims an additional device seat on an already-active license.
// The quota check happens in the engine under the per-key lock; the unique
// (key, hash) index keeps a duplicate bind from ever producing two seats.
func (s *LicenseStore) BindDevice(key, fingerprintHash string, boundAt int64, rec *model.ActivationRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		binding := &model.DeviceBinding{
			LicenseKey:      key,
			FingerprintHash: fingerprintHash,
			BoundAt:         boundAt,
		}
		if err := tx.Create(binding).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
}

// HasBinding reports whether the fingerprint hash already occupies a seat.
func (s *LicenseStore) HasBinding(key, fingerprintHash string) (bool, error) {
	var count int64
	err := s.db.Model(&model.DeviceBinding{}).
		Where("license_key = ? AND fingerprint_hash = ?", key, fingerprintHash).
		Count(&count).Error
	return count > 0, err
}

func (s *LicenseStore) CountBindings(key string) (int64, error) {
	var count int64
	err := s.db.Model(&model.DeviceBinding{}).
		Where("license_key = ?", key).
		Count(&count).Error
	return count, err
}

// MarkExpired flips an active license to expired. Touches nothing else.
func (s *LicenseStore) MarkExpired(key string) error {
	return s.db.Model(&model.License{}).
		Where("key = ? AND status = ?", key, model.StatusActive).
		Update("status", model.StatusExpired).Error
}

// Revoke moves a license to revoked regardless of its current state.
func (s *LicenseStore) Revoke(key string) error {
	res := s.db.Model(&model.License{}).
		Where("key = ?", key).
		Update("status", model.StatusRevoked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset returns a license to unused, clearing the activation fields and
// releasing every device seat. The audit trail is kept.
func (s *LicenseStore) Reset(key string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.License{}).
			Where("key = ?", key).
			Updates(map[string]interface{}{
				"status":            model.StatusUnused,
				"activated_at":      0,
				"expires_at":        0,
				"bound_fingerprint": "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("license_key = ?", key).
			Delete(&model.DeviceBinding{}).Error
	})
}

// Delete removes a license and cascades to its bindings and audit rows.
func (s *LicenseStore) Delete(key string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("key = ?", key).Delete(&model.License{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("license_key = ?", key).
			Delete(&model.DeviceBinding{}).Error; err != nil {
			return err
		}
		return tx.Where("license_key = ?", key).
			Delete(&model.ActivationRecord{}).Error
	})
}

// Activations returns the audit rows for a license, newest first.
func (s *LicenseStore) Activations(key string) ([]model.ActivationRecord, error) {
	var records []model.ActivationRecord
	err := s.db.Where("license_key = ?", key).
		Order("activated_at desc").
		Find(&records).Error
	return records, err
}

// Stats counts licenses grouped by stored status.
func (s *LicenseStore) Stats() (*model.LicenseStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.Model(&model.License{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.LicenseStats{}
	for _, r := range rows {
		switch r.Status {
		case model.StatusUnused:
			stats.Unused = r.Count
		case model.StatusActive:
			stats.Active = r.Count
		case model.StatusExpired:
			stats.Expired = r.Count
		case model.StatusRevoked:
			stats.Revoked = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

// Ping probes store connectivity for the health endpoint.
func (s *LicenseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
