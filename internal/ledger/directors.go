package ledger

import (
	"fmt"

	"polling/internal/domain"
	"polling/internal/identity"
)

// AddDirector registers addr as a director. Only the owner may call it.
func (l *Ledger) AddDirector(caller, addr identity.Address, name string) (domain.Event, error) {
	const op = "add director"
	if err := l.authorize(op, caller, domain.RoleOwner); err != nil {
		return domain.Event{}, err
	}
	name = identity.NormalizeText(name)
	if name == "" {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEmptyName)
	}
	if addr.IsZero() {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrInvalidAddress)
	}
	if l.isDirector(addr) {
		return domain.Event{}, fmt.Errorf("%s: %s: %w", op, addr, ErrDuplicateDirector)
	}
	// An address holds at most one role.
	if role := l.Role(addr); role != domain.RoleUser {
		return domain.Event{}, fmt.Errorf("%s: %s is %s: %w", op, addr, role, ErrRestricted)
	}
	d := domain.Director{Address: addr, Name: name, CreatedAt: l.clock()}
	l.directorIdx[addr] = len(l.directors)
	l.directors = append(l.directors, d)
	return l.event(domain.EventDirectorAdded, caller, "director", addr.String(), domain.EventPayload{
		"address": addr.String(),
		"name":    name,
	}), nil
}

// Directors lists every director in insertion order.
func (l *Ledger) Directors() []domain.Director {
	return append([]domain.Director(nil), l.directors...)
}

func (l *Ledger) Director(addr identity.Address) (domain.Director, bool) {
	i, ok := l.directorIdx[addr]
	if !ok {
		return domain.Director{}, false
	}
	return l.directors[i], true
}
