package ledger

import (
	"fmt"
	"time"

	"polling/internal/domain"
	"polling/internal/identity"
)

// Stake deposits amount into custody on behalf of caller. Owners and directors
// cannot stake. A caller without a slot gets a new one; a caller whose slot was
// zeroed by a full withdrawal reuses it.
func (l *Ledger) Stake(caller identity.Address, name string, amount domain.Amount) (domain.Event, error) {
	const op = "stake"
	if err := l.authorize(op, caller, domain.RoleUser, domain.RoleStakeholder); err != nil {
		return domain.Event{}, err
	}
	name = identity.NormalizeText(name)
	if name == "" {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}
	if amount < l.org.MinimumStakingAmount {
		return domain.Event{}, fmt.Errorf("%s: %d < %d: %w", op, amount, l.org.MinimumStakingAmount, ErrBelowMinimumStake)
	}
	if l.balance+amount < l.balance {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrAmountOverflow)
	}

	i, ok := l.slotIdx[caller]
	if !ok {
		i = len(l.slots)
		l.slotIdx[caller] = i
		l.slotOwners = append(l.slotOwners, caller)
		l.slots = append(l.slots, domain.Stakeholder{SlotIndex: i})
	}
	s := &l.slots[i]
	s.Address = caller
	s.Name = name
	s.StakedAt = l.clock()
	s.Amount += amount
	l.balance += amount

	return l.event(domain.EventStakeDeposited, caller, "stakeholder", caller.String(), domain.EventPayload{
		"address":      caller.String(),
		"amount":       uint64(amount),
		"total_staked": uint64(s.Amount),
		"slot_index":   i,
	}), nil
}

// Withdraw releases amount from caller's vested stake. Withdrawing the whole
// stake zeroes the slot in place.
func (l *Ledger) Withdraw(caller identity.Address, amount domain.Amount) (domain.Event, error) {
	const op = "withdraw"
	if err := l.authorize(op, caller, domain.RoleStakeholder); err != nil {
		return domain.Event{}, err
	}
	i := l.slotIdx[caller]
	s := &l.slots[i]
	now := l.clock()
	if vestedAt := s.StakedAt.Add(l.org.VestingPeriod()); now.Before(vestedAt) {
		return domain.Event{}, fmt.Errorf("%s: vests at %s: %w", op, vestedAt.Format(time.RFC3339), ErrNotVested)
	}
	if amount > s.Amount {
		return domain.Event{}, fmt.Errorf("%s: %d > %d: %w", op, amount, s.Amount, ErrInsufficientBalance)
	}
	left := s.Amount - amount
	if left > 0 && left < l.org.MinimumStakingAmount {
		return domain.Event{}, fmt.Errorf("%s: %d left < %d: %w", op, left, l.org.MinimumStakingAmount, ErrBelowMinimumRemainder)
	}

	s.Amount = left
	l.balance -= amount
	removed := left == 0
	if removed {
		*s = domain.Stakeholder{SlotIndex: i}
	}
	return l.event(domain.EventStakeWithdrawn, caller, "stakeholder", caller.String(), domain.EventPayload{
		"address":      caller.String(),
		"amount":       uint64(amount),
		"total_staked": uint64(left),
		"slot_index":   i,
		"removed":      removed,
	}), nil
}

// Stakeholders lists every slot, zeroed ones included, in slot order.
func (l *Ledger) Stakeholders() []domain.Stakeholder {
	return append([]domain.Stakeholder(nil), l.slots...)
}

// ActiveStakeholders lists slots holding a positive stake.
func (l *Ledger) ActiveStakeholders() []domain.Stakeholder {
	var out []domain.Stakeholder
	for _, s := range l.slots {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

func (l *Ledger) ActiveStakeholderCount() int {
	n := 0
	for _, s := range l.slots {
		if s.Active() {
			n++
		}
	}
	return n
}

// Stakeholder returns the slot owned by addr, which may be zeroed.
func (l *Ledger) Stakeholder(addr identity.Address) (domain.Stakeholder, bool) {
	i, ok := l.slotIdx[addr]
	if !ok {
		return domain.Stakeholder{}, false
	}
	return l.slots[i], true
}
