package engine

import (
	"context"
	"database/sql"
	"fmt"

	"polling/internal/domain"
	"polling/internal/ledger"
)

// persist writes the difference between two ledger states. Directors and
// tasks are append-only and approvals only grow, so the diff is a suffix
// check everywhere except stakeholder slots.
func (e Engine) persist(ctx context.Context, tx *sql.Tx, before, after ledger.State) error {
	for _, d := range after.Directors[len(before.Directors):] {
		if err := e.Repo.InsertDirector(ctx, tx, d); err != nil {
			return fmt.Errorf("insert director %s: %w", d.Address, err)
		}
	}

	for i, slot := range after.Slots {
		if i < len(before.Slots) && sameStakeholder(before.Slots[i].Stakeholder, slot.Stakeholder) {
			continue
		}
		if err := e.Repo.UpsertSlot(ctx, tx, slot.Owner, slot.Stakeholder); err != nil {
			return fmt.Errorf("write slot %d: %w", i, err)
		}
	}
	if after.Balance != before.Balance {
		if err := e.Repo.SetBalance(ctx, tx, after.Balance); err != nil {
			return fmt.Errorf("write balance: %w", err)
		}
	}

	for i, t := range after.Tasks {
		if i >= len(before.Tasks) {
			if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
				return fmt.Errorf("insert task %d: %w", t.ID, err)
			}
			continue
		}
		for _, voter := range t.ApprovedBy[len(before.Tasks[i].ApprovedBy):] {
			if err := e.Repo.RecordApproval(ctx, tx, t, voter); err != nil {
				return fmt.Errorf("record approval of task %d: %w", t.ID, err)
			}
		}
	}
	return nil
}

func sameStakeholder(a, b domain.Stakeholder) bool {
	return a.Address == b.Address &&
		a.Name == b.Name &&
		a.Amount == b.Amount &&
		a.StakedAt.Equal(b.StakedAt)
}
