package model

// DeviceBinding records one device seat claimed on a license. A license may
// hold at most MaxDevices rows here; the (key, hash) pair is unique so the
// same device never occupies two seats.
type DeviceBinding struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	LicenseKey      string `json:"license_key" gorm:"uniqueIndex:idx_binding_key_hash"`
	FingerprintHash string `json:"fingerprint_hash" gorm:"uniqueIndex:idx_binding_key_hash"`
	BoundAt         int64  `json:"bound_at"`
}

// ActivationRecord is the append-only audit trail of device binds. Rows are
// never mutated; they are removed only when their license is deleted.
type ActivationRecord struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	LicenseKey      string `json:"license_key" gorm:"index"`
	FingerprintHash string `json:"fingerprint_hash"`
	IPAddress       string `json:"ip_address"`
	UserAgent       string `json:"user_agent"`
	ActivatedAt     int64  `json:"activated_at"`
}
