package model

import "time"

// OperationLog records administrative mutations (generate, revoke, reset,
// delete) for after-the-fact review.
type OperationLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id"`
	Action     string    `json:"action"`
	LicenseKey string    `json:"license_key"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Status    string    `json:"status"` // success, failed
	CreatedAt time.Time `json:"created_at"`
}
