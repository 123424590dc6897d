package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription plans. The engine only reads a user's plan; billing and
// entitlement management live elsewhere.
const (
	PlanFree    = "free"
	PlanCreator = "creator"
	PlanMaster  = "master"
)

// Plan statuses.
const (
	PlanActive   = "active"
	PlanCanceled = "canceled"
	PlanPastDue  = "past_due"
)

// User is the owner of projects. Only the fields the pipeline reads are
// modelled here.
type User struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	Plan       string    `db:"plan"        json:"plan"`
	PlanStatus string    `db:"plan_status" json:"plan_status"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// HasMasterPlan reports whether the user qualifies for variant fan-out.
func (u *User) HasMasterPlan() bool {
	return u.Plan == PlanMaster && u.PlanStatus == PlanActive
}

// AuthToken is a bearer token granting a client access to its owner's
// progress streams. The raw token is never stored; only a bcrypt hash and
// a lookup prefix.
type AuthToken struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	UserID      uuid.UUID  `db:"user_id"      json:"user_id"`
	TokenHash   string     `db:"token_hash"   json:"-"`
	TokenPrefix string     `db:"token_prefix" json:"-"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
}
