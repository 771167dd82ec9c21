package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"polling/internal/db"
	"polling/internal/domain"
	"polling/internal/events"
	"polling/internal/identity"
	"polling/internal/migrate"
	"polling/internal/repo"
)

var (
	owner = identity.MustParseAddress("0x00000000000000000000000000000000000000aa")
	voter = identity.MustParseAddress("0x0000000000000000000000000000000000000001")
	at    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, ctx
}

func TestLoadStateRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	if _, err := r.LoadState(ctx, nil); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found before deploy, got %v", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	org := domain.Organization{Name: "Acme", Owner: domain.Owner{Address: owner, Name: "Olive"}, TaskApprovalPercentage: 50, MinimumStakingAmount: 5, VestingPeriodInDays: 7}
	if err := r.InsertOrganization(ctx, tx, org, at); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	slot := domain.Stakeholder{SlotIndex: 0, Address: voter, Name: "Vic", StakedAt: at, Amount: 12}
	if err := r.UpsertSlot(ctx, tx, voter, slot); err != nil {
		t.Fatalf("upsert slot: %v", err)
	}
	if err := r.SetBalance(ctx, tx, 12); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	task := domain.Task{ID: 1, CreatedAt: at, CreatedBy: owner, Title: "Roof", Description: "Fix it"}
	if err := r.InsertTask(ctx, tx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	task.IsApproved = true
	if err := r.RecordApproval(ctx, tx, task, voter); err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if _, err := (events.Writer{}).Append(ctx, tx, "op-1", domain.Event{TS: at, Type: domain.EventTaskApproved, Actor: voter, EntityKind: "task", EntityID: "1"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	st, err := r.LoadState(ctx, nil)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.Organization != org || st.Balance != 12 {
		t.Fatalf("unexpected organization %+v balance %d", st.Organization, st.Balance)
	}
	if len(st.Slots) != 1 || st.Slots[0].Owner != voter || !st.Slots[0].Stakeholder.StakedAt.Equal(at) {
		t.Fatalf("unexpected slots %+v", st.Slots)
	}
	if len(st.Tasks) != 1 || !st.Tasks[0].IsApproved || len(st.Tasks[0].ApprovedBy) != 1 {
		t.Fatalf("unexpected tasks %+v", st.Tasks)
	}

	evts, err := r.LatestEvents(ctx, 0, repo.EventFilter{Actor: voter})
	if err != nil || len(evts) != 1 || evts[0].OpID != "op-1" || !evts[0].TS.Equal(at) {
		t.Fatalf("unexpected events %+v %v", evts, err)
	}
	none, err := r.LatestEvents(ctx, 5, repo.EventFilter{Type: domain.EventDirectorAdded})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no director events, got %+v %v", none, err)
	}
}

func TestZeroedSlotKeepsOwner(t *testing.T) {
	r, ctx := newRepo(t)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	org := domain.Organization{Name: "Acme", Owner: domain.Owner{Address: owner, Name: "Olive"}, MinimumStakingAmount: 1}
	if err := r.InsertOrganization(ctx, tx, org, at); err != nil {
		t.Fatalf("insert organization: %v", err)
	}
	if err := r.UpsertSlot(ctx, tx, voter, domain.Stakeholder{Address: voter, Name: "Vic", StakedAt: at, Amount: 3}); err != nil {
		t.Fatalf("upsert slot: %v", err)
	}
	if err := r.UpsertSlot(ctx, tx, voter, domain.Stakeholder{}); err != nil {
		t.Fatalf("zero slot: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	slots, err := r.ListSlots(ctx, nil)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Owner != voter || slots[0].Stakeholder.Active() || !slots[0].Stakeholder.StakedAt.IsZero() {
		t.Fatalf("unexpected slots %+v", slots)
	}
}
