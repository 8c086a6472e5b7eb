package license

import (
	"errors"
	"time"

	"license-activation-service/internal/model"
	"license-activation-service/internal/store"

	"github.com/sirupsen/logrus"
)

const millisPerDay = 86400000

// Result codes classify the outcome of a validation call. Business
// rejections are results, not errors; only store failures surface as errors.
const (
	CodeOK             = "ok"
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeDeviceMismatch = "device_mismatch"
	CodeExpired        = "expired"
	CodeRevoked        = "revoked"
)

// Result is the outcome of a validateAndActivate call. The activation
// fields and client metadata are populated only when Valid is true.
type Result struct {
	Valid       bool
	Code        string
	Message     string
	Key         string
	Fingerprint string
	ActivatedAt int64
	ExpiresAt   int64
	ClientName  string
	ClientEmail string
}

// RequestMeta carries caller context into the activation audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// GenerateInput holds the caller-supplied metadata for a new license.
// Empty fields receive defaults; DurationDays 0 means the license never
// expires and MaxDevices 0 falls back to a single seat.
type GenerateInput struct {
	ClientName   string
	ClientEmail  string
	Notes        string
	LicenseType  string
	DurationDays int
	MaxDevices   int
}

// Engine applies the license state machine: unused → active →
// expired|revoked, with an administrative reset back to unused. It holds no
// per-license state between calls; the store owns all durable state and the
// per-key lock serializes concurrent claims against one key.
type Engine struct {
	store *store.LicenseStore
	locks keyLock
	log   *logrus.Logger
}

func NewEngine(s *store.LicenseStore, log *logrus.Logger) *Engine {
	return &Engine{store: s, log: log}
}

// Generate creates a license in unused status. Key collisions are retried
// internally with a fresh key and never surface to the caller.
func (e *Engine) Generate(in GenerateInput) (*model.License, error) {
	if in.ClientName == "" {
		in.ClientName = model.DefaultClientName
	}
	if in.LicenseType == "" {
		in.LicenseType = model.DefaultLicenseType
	}
	if in.DurationDays < 0 {
		in.DurationDays = 0
	}
	if in.MaxDevices < 1 {
		in.MaxDevices = 1
	}

	for attempt := 0; attempt < 5; attempt++ {
		key, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		lic := &model.License{
			Key:          key,
			ClientName:   in.ClientName,
			ClientEmail:  in.ClientEmail,
			Notes:        in.Notes,
			LicenseType:  in.LicenseType,
			DurationDays: in.DurationDays,
			MaxDevices:   in.MaxDevices,
			Status:       model.StatusUnused,
			CreatedAt:    time.Now().UnixMilli(),
		}
		err = e.store.Create(lic)
		if err == nil {
			return lic, nil
		}
		if errors.Is(err, store.ErrDuplicateKey) {
			e.log.WithField("key", key).Warn("generated key collided, retrying")
			continue
		}
		return nil, err
	}
	return nil, errors.New("could not generate a unique license key")
}

// ValidateAndActivate decides whether the device identified by fingerprint
// may use the license. On an unused license it performs the binding
// transition; on an active one it re-validates the bound device and applies
// lazy expiry. The per-key lock plus the store's conditional claim
// guarantee at most one winner when two devices race for the same seat.
func (e *Engine) ValidateAndActivate(key, fingerprint string, meta RequestMeta) (*Result, error) {
	if key == "" || fingerprint == "" {
		return &Result{
			Code:    CodeInvalidRequest,
			Message: "key and fingerprint are required",
		}, nil
	}

	lock := e.locks.get(key)
	lock.Lock()
	defer lock.Unlock()

	hash := HashFingerprint(fingerprint)

	// One retry: a claim lost to a concurrent instance re-reads the row and
	// falls through to the active-license path.
	for attempt := 0; attempt < 2; attempt++ {
		lic, err := e.store.Get(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return &Result{Code: CodeNotFound, Message: "license not found"}, nil
			}
			return nil, err
		}

		switch lic.Status {
		case model.StatusUnused:
			res, claimed, err := e.claimFirst(lic, hash, fingerprint, meta)
			if err != nil {
				return nil, err
			}
			if claimed {
				return res, nil
			}
			continue

		case model.StatusActive:
			return e.validateActive(lic, hash, fingerprint, meta)

		case model.StatusExpired:
			return &Result{Code: CodeExpired, Message: "license expired"}, nil

		case model.StatusRevoked:
			return &Result{Code: CodeRevoked, Message: "license revoked"}, nil

		default:
			e.log.WithFields(logrus.Fields{
				"key":    lic.Key,
				"status": lic.Status,
			}).Error("license in unknown status")
			return &Result{Code: CodeNotFound, Message: "license in unknown state"}, nil
		}
	}
	return nil, errors.New("activation retry exhausted")
}

func (e *Engine) claimFirst(lic *model.License, hash, fingerprint string, meta RequestMeta) (*Result, bool, error) {
	now := time.Now().UnixMilli()
	expiresAt := int64(0)
	if lic.DurationDays > 0 {
		expiresAt = now + int64(lic.DurationDays)*millisPerDay
	}

	rec := &model.ActivationRecord{
		LicenseKey:      lic.Key,
		FingerprintHash: hash,
		IPAddress:       meta.IPAddress,
		UserAgent:       meta.UserAgent,
		ActivatedAt:     now,
	}
	claimed, err := e.store.ClaimUnused(lic.Key, hash, now, expiresAt, rec)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		return nil, false, nil
	}

	e.log.WithFields(logrus.Fields{
		"key":        lic.Key,
		"expires_at": expiresAt,
	}).Info("license activated")

	return &Result{
		Valid:       true,
		Code:        CodeOK,
		Message:     "license activated",
		Key:         lic.Key,
		Fingerprint: fingerprint,
		ActivatedAt: now,
		ExpiresAt:   expiresAt,
		ClientName:  lic.ClientName,
		ClientEmail: lic.ClientEmail,
	}, true, nil
}

func (e *Engine) validateActive(lic *model.License, hash, fingerprint string, meta RequestMeta) (*Result, error) {
	bound, err := e.store.HasBinding(lic.Key, hash)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()

	if bound {
		if lic.ExpiredAt(now) {
			if err := e.store.MarkExpired(lic.Key); err != nil {
				return nil, err
			}
			return &Result{Code: CodeExpired, Message: "license expired"}, nil
		}
		// Idempotent re-validation: no mutation, no audit row.
		return &Result{
			Valid:       true,
			Code:        CodeOK,
			Message:     "license valid",
			Key:         lic.Key,
			Fingerprint: fingerprint,
			ActivatedAt: lic.ActivatedAt,
			ExpiresAt:   lic.ExpiresAt,
			ClientName:  lic.ClientName,
			ClientEmail: lic.ClientEmail,
		}, nil
	}

	seats, err := e.store.CountBindings(lic.Key)
	if err != nil {
		return nil, err
	}
	if seats >= int64(lic.MaxDevices) {
		return &Result{
			Code:    CodeDeviceMismatch,
			Message: "license already activated on another device",
		}, nil
	}

	// A free seat on an expired license is still no seat.
	if lic.ExpiredAt(now) {
		if err := e.store.MarkExpired(lic.Key); err != nil {
			return nil, err
		}
		return &Result{Code: CodeExpired, Message: "license expired"}, nil
	}

	rec := &model.ActivationRecord{
		LicenseKey:      lic.Key,
		FingerprintHash: hash,
		IPAddress:       meta.IPAddress,
		UserAgent:       meta.UserAgent,
		ActivatedAt:     now,
	}
	if err := e.store.BindDevice(lic.Key, hash, now, rec); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"key":  lic.Key,
		"seat": seats + 1,
	}).Info("additional device bound")

	return &Result{
		Valid:       true,
		Code:        CodeOK,
		Message:     "license activated",
		Key:         lic.Key,
		Fingerprint: fingerprint,
		ActivatedAt: lic.ActivatedAt,
		ExpiresAt:   lic.ExpiresAt,
		ClientName:  lic.ClientName,
		ClientEmail: lic.ClientEmail,
	}, nil
}

// Revoke moves a license to revoked from any state. Only a reset undoes it.
func (e *Engine) Revoke(key string) error {
	return e.store.Revoke(key)
}

// Reset frees every seat and returns the license to unused. The next
// validation performs a fresh binding transition, possibly to a different
// device than before.
func (e *Engine) Reset(key string) error {
	lock := e.locks.get(key)
	lock.Lock()
	defer lock.Unlock()
	return e.store.Reset(key)
}
