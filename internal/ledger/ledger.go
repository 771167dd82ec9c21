// Package ledger holds the governance state machine: role resolution, the
// director registry, the stakeholder slot arena with vesting-locked deposits,
// and quorum-approved tasks.
//
// A Ledger is not safe for concurrent use. Every mutating method validates all
// preconditions before it touches state, so a returned error means nothing
// changed. Serializing calls and persisting results is the caller's job (see
// package engine).
package ledger

import (
	"fmt"
	"strconv"
	"time"

	"polling/internal/domain"
	"polling/internal/identity"
)

// Slot pairs a stakeholder record with the address that owns the slot. Owner
// survives zeroing so the address keeps its slot for the lifetime of the ledger.
type Slot struct {
	Owner       identity.Address
	Stakeholder domain.Stakeholder
}

// State is the complete ledger state, used to restore a ledger from storage.
type State struct {
	Organization domain.Organization
	Directors    []domain.Director
	Slots        []Slot
	Tasks        []domain.Task
	Balance      domain.Amount
}

type Ledger struct {
	org domain.Organization
	now func() time.Time

	directors   []domain.Director
	directorIdx map[identity.Address]int

	slots      []domain.Stakeholder
	slotOwners []identity.Address
	slotIdx    map[identity.Address]int

	tasks      []domain.Task
	taskIdx    map[int64]int
	titles     map[string]int64
	nextTaskID int64

	balance domain.Amount
}

// New constructs an empty ledger for org. now supplies the monotonic clock;
// nil means time.Now.
func New(org domain.Organization, now func() time.Time) (*Ledger, error) {
	if err := ValidateOrganization(org); err != nil {
		return nil, err
	}
	org.Name = identity.NormalizeText(org.Name)
	org.Owner.Name = identity.NormalizeText(org.Owner.Name)
	return &Ledger{
		org:         org,
		now:         now,
		directorIdx: map[identity.Address]int{},
		slotIdx:     map[identity.Address]int{},
		taskIdx:     map[int64]int{},
		titles:      map[string]int64{},
		nextTaskID:  1,
	}, nil
}

// Restore rebuilds a ledger from a previously committed state and checks the
// invariants that storage cannot enforce on its own.
func Restore(st State, now func() time.Time) (*Ledger, error) {
	l, err := New(st.Organization, now)
	if err != nil {
		return nil, err
	}
	for _, d := range st.Directors {
		if _, ok := l.directorIdx[d.Address]; ok {
			return nil, fmt.Errorf("restore: director %s: %w", d.Address, ErrDuplicateDirector)
		}
		l.directorIdx[d.Address] = len(l.directors)
		l.directors = append(l.directors, d)
	}
	var staked domain.Amount
	for i, s := range st.Slots {
		if s.Owner.IsZero() {
			return nil, fmt.Errorf("restore: slot %d has no owner", i)
		}
		if _, ok := l.slotIdx[s.Owner]; ok {
			return nil, fmt.Errorf("restore: address %s owns two slots", s.Owner)
		}
		rec := s.Stakeholder
		rec.SlotIndex = i
		if rec.Active() && rec.Address != s.Owner {
			return nil, fmt.Errorf("restore: slot %d address %s does not match owner %s", i, rec.Address, s.Owner)
		}
		if staked+rec.Amount < staked {
			return nil, fmt.Errorf("restore: %w", ErrAmountOverflow)
		}
		staked += rec.Amount
		l.slotIdx[s.Owner] = i
		l.slotOwners = append(l.slotOwners, s.Owner)
		l.slots = append(l.slots, rec)
	}
	if staked != st.Balance {
		return nil, fmt.Errorf("restore: custody balance %d does not match staked total %d", st.Balance, staked)
	}
	l.balance = st.Balance
	for _, t := range st.Tasks {
		if t.ID < l.nextTaskID {
			return nil, fmt.Errorf("restore: task id %d out of order", t.ID)
		}
		if _, ok := l.titles[t.Title]; ok {
			return nil, fmt.Errorf("restore: task %q: %w", t.Title, ErrDuplicateTitle)
		}
		t.ApprovedBy = append([]identity.Address(nil), t.ApprovedBy...)
		l.taskIdx[t.ID] = len(l.tasks)
		l.titles[t.Title] = t.ID
		l.tasks = append(l.tasks, t)
		l.nextTaskID = t.ID + 1
	}
	return l, nil
}

// ValidateOrganization checks construction-time configuration.
func ValidateOrganization(org domain.Organization) error {
	switch {
	case identity.NormalizeText(org.Name) == "":
		return fmt.Errorf("%w: organization name is required", ErrInvalidConfig)
	case identity.NormalizeText(org.Owner.Name) == "":
		return fmt.Errorf("%w: owner name is required", ErrInvalidConfig)
	case org.Owner.Address.IsZero():
		return fmt.Errorf("%w: owner address is required", ErrInvalidConfig)
	case org.TaskApprovalPercentage > 100:
		return fmt.Errorf("%w: task approval percentage %d exceeds 100", ErrInvalidConfig, org.TaskApprovalPercentage)
	case org.MinimumStakingAmount == 0:
		return fmt.Errorf("%w: minimum staking amount must be positive", ErrInvalidConfig)
	}
	return nil
}

func (l *Ledger) clock() time.Time {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	return now().UTC().Truncate(time.Second)
}

func (l *Ledger) event(typ string, actor identity.Address, kind, id string, payload domain.EventPayload) domain.Event {
	return domain.Event{
		TS:         l.clock(),
		Type:       typ,
		Actor:      actor,
		EntityKind: kind,
		EntityID:   id,
		Payload:    payload,
	}
}

func (l *Ledger) Organization() domain.Organization { return l.org }

// Balance is the total amount held in custody.
func (l *Ledger) Balance() domain.Amount { return l.balance }

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() State {
	st := State{
		Organization: l.org,
		Directors:    l.Directors(),
		Tasks:        l.Tasks(),
		Balance:      l.balance,
	}
	for i, s := range l.slots {
		st.Slots = append(st.Slots, Slot{Owner: l.slotOwners[i], Stakeholder: s})
	}
	return st
}

func taskKey(id int64) string { return strconv.FormatInt(id, 10) }
