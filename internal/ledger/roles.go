package ledger

import (
	"polling/internal/domain"
	"polling/internal/identity"
)

// Role classifies addr. Checks run in priority order owner, director, active
// stakeholder, so an address resolves to exactly one role.
func (l *Ledger) Role(addr identity.Address) domain.Role {
	switch {
	case addr.IsZero():
		return domain.RoleUser
	case addr == l.org.Owner.Address:
		return domain.RoleOwner
	case l.isDirector(addr):
		return domain.RoleDirector
	case l.isStakeholder(addr):
		return domain.RoleStakeholder
	}
	return domain.RoleUser
}

// DisplayName returns the name recorded for addr, or domain.ExternalName.
func (l *Ledger) DisplayName(addr identity.Address) string {
	switch l.Role(addr) {
	case domain.RoleOwner:
		return l.org.Owner.Name
	case domain.RoleDirector:
		return l.directors[l.directorIdx[addr]].Name
	case domain.RoleStakeholder:
		return l.slots[l.slotIdx[addr]].Name
	}
	return domain.ExternalName
}

func (l *Ledger) isDirector(addr identity.Address) bool {
	_, ok := l.directorIdx[addr]
	return ok
}

func (l *Ledger) isStakeholder(addr identity.Address) bool {
	i, ok := l.slotIdx[addr]
	return ok && l.slots[i].Active()
}

// authorize fails with *UnauthorizedError unless caller resolves to one of want.
func (l *Ledger) authorize(op string, caller identity.Address, want ...domain.Role) error {
	role := l.Role(caller)
	if !caller.IsZero() {
		for _, w := range want {
			if role == w {
				return nil
			}
		}
	}
	return &UnauthorizedError{Op: op, Caller: caller, Role: role, Want: want}
}
