package calllog

import "time"

// CallLog is a durable record of one admitted call attempt.
//
// Invariants:
// - Rows are append-only. The gate writes exactly one row per successful
//   admission and never updates or deletes it.
// - UserEmail is denormalized at write time so the log stays readable even
//   if the auth provider's user record changes or disappears.
//
// Storage (Postgres): table call_logs with an INSERT-only policy; started_at
// is indexed together with user_id for the daily quota count.
type CallLog struct {
	ID string `json:"id" db:"id"`

	UserID    string `json:"user_id" db:"user_id"`
	UserEmail string `json:"user_email,omitempty" db:"user_email"`

	// VendorCallID is the external call identifier returned by the vendor.
	VendorCallID string `json:"vendor_call_id" db:"vendor_call_id"`

	Status Status `json:"status" db:"status"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
}

type Status string

const (
	// StatusInitiated is the only status this service writes. Terminal
	// statuses are owned by the vendor and not reconciled back.
	StatusInitiated Status = "initiated"
)
