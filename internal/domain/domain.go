package domain

import (
	"time"

	"polling/internal/identity"
)

// Amount is a balance in the ledger's native unit.
type Amount uint64

type Role string

const (
	RoleOwner       Role = "Owner"
	RoleDirector    Role = "Director"
	RoleStakeholder Role = "Stakeholder"
	RoleUser        Role = "User"
)

// ExternalName is reported for addresses with no owner, director or active stakeholder record.
const ExternalName = "External"

type Owner struct {
	Address identity.Address `json:"address"`
	Name    string           `json:"name"`
}

type Organization struct {
	Name                   string `json:"name"`
	Owner                  Owner  `json:"owner"`
	TaskApprovalPercentage uint8  `json:"task_approval_percentage"`
	MinimumStakingAmount   Amount `json:"minimum_staking_amount"`
	VestingPeriodInDays    uint32 `json:"vesting_period_in_days"`
}

// VestingPeriod returns the vesting period as a duration.
func (o Organization) VestingPeriod() time.Duration {
	return time.Duration(o.VestingPeriodInDays) * 24 * time.Hour
}

type Director struct {
	Address   identity.Address `json:"address"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at" format:"date-time"`
}

// Stakeholder is one slot of the stakeholder arena. A slot whose stake was fully
// withdrawn keeps its SlotIndex and reads as zero everywhere else.
type Stakeholder struct {
	SlotIndex int              `json:"slot_index"`
	Address   identity.Address `json:"address"`
	Name      string           `json:"name"`
	StakedAt  time.Time        `json:"staked_at" format:"date-time"`
	Amount    Amount           `json:"amount"`
}

func (s Stakeholder) Active() bool {
	return s.Amount > 0
}

type Task struct {
	ID          int64              `json:"id"`
	CreatedAt   time.Time          `json:"created_at" format:"date-time"`
	CreatedBy   identity.Address   `json:"created_by"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ApprovedBy  []identity.Address `json:"approved_by"`
	IsApproved  bool               `json:"is_approved"`
}

// HasApproval reports whether addr already voted for the task.
func (t Task) HasApproval(addr identity.Address) bool {
	for _, a := range t.ApprovedBy {
		if a == addr {
			return true
		}
	}
	return false
}

// Event types emitted by ledger operations.
const (
	EventDirectorAdded  = "director.added"
	EventStakeDeposited = "stake.deposited"
	EventStakeWithdrawn = "stake.withdrawn"
	EventTaskAdded      = "task.added"
	EventTaskApproved   = "task.approved"
	EventDeployed       = "organization.deployed"
)

type EventPayload map[string]any

// Event is a notification emitted by a committed operation. ID and OpID are
// assigned by the journal when the event is stored.
type Event struct {
	ID         int64            `json:"id"`
	OpID       string           `json:"op_id"`
	TS         time.Time        `json:"ts" format:"date-time"`
	Type       string           `json:"type"`
	Actor      identity.Address `json:"actor"`
	EntityKind string           `json:"entity_kind"`
	EntityID   string           `json:"entity_id"`
	Payload    EventPayload     `json:"payload"`
}
