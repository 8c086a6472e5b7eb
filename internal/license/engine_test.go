package license

import (
	"io"
	"sync"
	"testing"
	"time"

	"license-activation-service/internal/database"
	"license-activation-service/internal/model"
	"license-activation-service/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testMeta = RequestMeta{IPAddress: "127.0.0.1", UserAgent: "test-agent"}

func newTestEngine(t *testing.T) (*Engine, *store.LicenseStore, *gorm.DB) {
	t.Helper()
	db := database.OpenTest()
	t.Cleanup(func() { database.CloseTest(db) })

	log := logrus.New()
	log.SetOutput(io.Discard)

	st := store.NewLicenseStore(db)
	return NewEngine(st, log), st, db
}

func TestGenerateDefaults(t *testing.T) {
	engine, st, _ := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{})
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, lic.Key)
	assert.Equal(t, model.StatusUnused, lic.Status)
	assert.Equal(t, model.DefaultClientName, lic.ClientName)
	assert.Equal(t, model.DefaultLicenseType, lic.LicenseType)
	assert.Equal(t, 0, lic.DurationDays)
	assert.Equal(t, 1, lic.MaxDevices)
	assert.NotZero(t, lic.CreatedAt)
	assert.Zero(t, lic.ActivatedAt)
	assert.Zero(t, lic.ExpiresAt)

	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, lic.Key, stored.Key)
}

func TestValidateInvalidRequest(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	tests := []struct {
		name        string
		key         string
		fingerprint string
	}{
		{"empty_key", "", "dev-A"},
		{"empty_fingerprint", "AAAA-BBBB-CCCC-DDDD", ""},
		{"both_empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.ValidateAndActivate(tt.key, tt.fingerprint, testMeta)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, CodeInvalidRequest, res.Code)
		})
	}
}

func TestValidateUnknownKey(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	res, err := engine.ValidateAndActivate("ZZZZ-ZZZZ-ZZZZ-ZZZZ", "dev-A", testMeta)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeNotFound, res.Code)
}

func TestFirstActivationBindsDevice(t *testing.T) {
	engine, st, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{DurationDays: 30})
	require.NoError(t, err)

	res, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, CodeOK, res.Code)
	assert.Equal(t, "dev-A", res.Fingerprint)
	assert.NotZero(t, res.ActivatedAt)
	assert.Equal(t, res.ActivatedAt+30*int64(millisPerDay), res.ExpiresAt)

	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)
	assert.Equal(t, HashFingerprint("dev-A"), stored.BoundFingerprint)
	assert.GreaterOrEqual(t, stored.ExpiresAt, stored.ActivatedAt)

	var records []model.ActivationRecord
	db.Where("license_key = ?", lic.Key).Find(&records)
	require.Len(t, records, 1)
	assert.Equal(t, HashFingerprint("dev-A"), records[0].FingerprintHash)
	assert.Equal(t, "127.0.0.1", records[0].IPAddress)
	assert.Equal(t, "test-agent", records[0].UserAgent)
}

func TestIdempotentRevalidation(t *testing.T) {
	engine, _, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{})
	require.NoError(t, err)

	first, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	require.True(t, first.Valid)

	for i := 0; i < 3; i++ {
		res, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, first.ActivatedAt, res.ActivatedAt)
		assert.Equal(t, first.ExpiresAt, res.ExpiresAt)
	}

	// Re-validation appends nothing to the audit trail.
	var count int64
	db.Model(&model.ActivationRecord{}).Where("license_key = ?", lic.Key).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDeviceMismatch(t *testing.T) {
	engine, st, _ := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{})
	require.NoError(t, err)

	_, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)

	res, err := engine.ValidateAndActivate(lic.Key, "dev-B", testMeta)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeDeviceMismatch, res.Code)

	// The rejection mutates nothing.
	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)
	assert.Equal(t, HashFingerprint("dev-A"), stored.BoundFingerprint)
}

func TestConcurrentSingleBinding(t *testing.T) {
	engine, _, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	fingerprints := []string{"dev-A", "dev-B"}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.ValidateAndActivate(lic.Key, fingerprints[i], testMeta)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	winners := 0
	for _, res := range results {
		if res.Valid {
			winners++
		} else {
			assert.Equal(t, CodeDeviceMismatch, res.Code)
		}
	}
	assert.Equal(t, 1, winners)

	var bindings int64
	db.Model(&model.DeviceBinding{}).Where("license_key = ?", lic.Key).Count(&bindings)
	assert.Equal(t, int64(1), bindings)

	var records int64
	db.Model(&model.ActivationRecord{}).Where("license_key = ?", lic.Key).Count(&records)
	assert.Equal(t, int64(1), records)
}

func TestExpiryTransition(t *testing.T) {
	engine, st, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{DurationDays: 1})
	require.NoError(t, err)

	_, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)

	// Backdate the activation two days.
	past := time.Now().UnixMilli() - 2*int64(millisPerDay)
	err = db.Model(&model.License{}).Where("key = ?", lic.Key).
		Updates(map[string]interface{}{
			"activated_at": past,
			"expires_at":   past + int64(millisPerDay),
		}).Error
	require.NoError(t, err)

	res, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeExpired, res.Code)

	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, stored.Status)

	// Once expired, the status-specific message comes back without a
	// fingerprint check.
	res, err = engine.ValidateAndActivate(lic.Key, "dev-B", testMeta)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeExpired, res.Code)
}

func TestNoExpirySentinel(t *testing.T) {
	engine, _, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{DurationDays: 0})
	require.NoError(t, err)

	res, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	require.True(t, res.Valid)
	assert.Zero(t, res.ExpiresAt)

	// Even years after activation, a zero ExpiresAt never expires.
	ancient := time.Now().UnixMilli() - 1000*int64(millisPerDay)
	err = db.Model(&model.License{}).Where("key = ?", lic.Key).
		Update("activated_at", ancient).Error
	require.NoError(t, err)

	res, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestRevokeTerminality(t *testing.T) {
	engine, st, _ := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{})
	require.NoError(t, err)

	_, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)

	require.NoError(t, engine.Revoke(lic.Key))

	// The bound device is rejected too.
	res, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeRevoked, res.Code)

	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, stored.Status)

	// Reset is the only way back.
	require.NoError(t, engine.Reset(lic.Key))
	res, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestRevokeUnknownKey(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	assert.ErrorIs(t, engine.Revoke("ZZZZ-ZZZZ-ZZZZ-ZZZZ"), store.ErrNotFound)
}

func TestResetRoundTrip(t *testing.T) {
	engine, st, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{DurationDays: 30})
	require.NoError(t, err)

	_, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)

	require.NoError(t, engine.Reset(lic.Key))

	stored, err := st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnused, stored.Status)
	assert.Empty(t, stored.BoundFingerprint)
	assert.Zero(t, stored.ActivatedAt)
	assert.Zero(t, stored.ExpiresAt)

	var bindings int64
	db.Model(&model.DeviceBinding{}).Where("license_key = ?", lic.Key).Count(&bindings)
	assert.Zero(t, bindings)

	// A different device can now claim the seat: the old binding is gone.
	res, err := engine.ValidateAndActivate(lic.Key, "dev-B", testMeta)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	stored, err = st.Get(lic.Key)
	require.NoError(t, err)
	assert.Equal(t, HashFingerprint("dev-B"), stored.BoundFingerprint)
}

func TestResetUnknownKey(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	assert.ErrorIs(t, engine.Reset("ZZZZ-ZZZZ-ZZZZ-ZZZZ"), store.ErrNotFound)
}

func TestMaxDevicesQuota(t *testing.T) {
	engine, _, db := newTestEngine(t)

	lic, err := engine.Generate(GenerateInput{MaxDevices: 2})
	require.NoError(t, err)

	resA, err := engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.True(t, resA.Valid)

	resB, err := engine.ValidateAndActivate(lic.Key, "dev-B", testMeta)
	require.NoError(t, err)
	assert.True(t, resB.Valid)

	// Third distinct device exceeds the quota.
	resC, err := engine.ValidateAndActivate(lic.Key, "dev-C", testMeta)
	require.NoError(t, err)
	assert.False(t, resC.Valid)
	assert.Equal(t, CodeDeviceMismatch, resC.Code)

	// Both bound devices keep re-validating.
	resA, err = engine.ValidateAndActivate(lic.Key, "dev-A", testMeta)
	require.NoError(t, err)
	assert.True(t, resA.Valid)
	resB, err = engine.ValidateAndActivate(lic.Key, "dev-B", testMeta)
	require.NoError(t, err)
	assert.True(t, resB.Valid)

	var bindings int64
	db.Model(&model.DeviceBinding{}).Where("license_key = ?", lic.Key).Count(&bindings)
	assert.Equal(t, int64(2), bindings)
}
