package repo

import (
	"context"
	"database/sql"
	"fmt"

	"polling/internal/domain"
	"polling/internal/identity"
	"polling/internal/ledger"
)

// UpsertSlot writes stakeholder slot s owned by owner. A zeroed record is
// stored as empty columns; the row itself is never deleted.
func (r Repo) UpsertSlot(ctx context.Context, tx *sql.Tx, owner identity.Address, s domain.Stakeholder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stakeholder_slots(slot_index,slot_owner,address,name,staked_at,amount) VALUES (?,?,?,?,?,?)
ON CONFLICT(slot_index) DO UPDATE SET address=excluded.address, name=excluded.name, staked_at=excluded.staked_at, amount=excluded.amount`,
		s.SlotIndex, owner.String(), s.Address.String(), s.Name, formatTime(s.StakedAt), formatAmount(s.Amount))
	return err
}

// ListSlots returns all stakeholder slots in slot order.
func (r Repo) ListSlots(ctx context.Context, q Querier) ([]ledger.Slot, error) {
	rows, err := r.q(q).QueryContext(ctx, `SELECT slot_index,slot_owner,address,name,staked_at,amount FROM stakeholder_slots ORDER BY slot_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ledger.Slot
	for rows.Next() {
		var (
			s                        domain.Stakeholder
			owner, addr, at, amount string
		)
		if err := rows.Scan(&s.SlotIndex, &owner, &addr, &s.Name, &at, &amount); err != nil {
			return nil, err
		}
		if s.SlotIndex != len(res) {
			return nil, fmt.Errorf("stakeholder slot %d missing", len(res))
		}
		s.Address = identity.Address(addr)
		if s.StakedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		if s.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		res = append(res, ledger.Slot{Owner: identity.Address(owner), Stakeholder: s})
	}
	return res, rows.Err()
}
