package model

// License status values. Transitions are forward-only except for the
// administrative reset, which returns a license to StatusUnused.
const (
	StatusUnused  = "unused"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// Default metadata applied when the caller leaves fields empty.
const (
	DefaultClientName  = "Não especificado"
	DefaultLicenseType = "lifetime"
)

// All timestamps are milliseconds since epoch. Zero means unset, and for
// ExpiresAt specifically it means the license never expires.
type License struct {
	Key              string `json:"key" gorm:"primaryKey"`
	ClientName       string `json:"client_name"`
	ClientEmail      string `json:"client_email"`
	Notes            string `json:"notes"`
	LicenseType      string `json:"license_type"`
	DurationDays     int    `json:"duration_days"`
	MaxDevices       int    `json:"max_devices" gorm:"default:1"`
	Status           string `json:"status" gorm:"not null;index"`
	BoundFingerprint string `json:"bound_fingerprint"`
	CreatedAt        int64  `json:"created_at"`
	ActivatedAt      int64  `json:"activated_at"`
	ExpiresAt        int64  `json:"expires_at"`
}

// Expirable reports whether the license has an expiry deadline at all.
func (l *License) Expirable() bool {
	return l.ExpiresAt != 0
}

// ExpiredAt reports whether the license deadline has passed at the given
// instant (milliseconds). Never true for licenses without expiry.
func (l *License) ExpiredAt(nowMillis int64) bool {
	return l.ExpiresAt != 0 && nowMillis > l.ExpiresAt
}
