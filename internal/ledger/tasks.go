package ledger

import (
	"fmt"

	"polling/internal/domain"
	"polling/internal/identity"
)

// AddTask proposes a task. Only the owner or a director may call it. With no
// active stakeholders the task is approved on creation.
func (l *Ledger) AddTask(caller identity.Address, title, description string) (domain.Event, error) {
	const op = "add task"
	if err := l.authorize(op, caller, domain.RoleOwner, domain.RoleDirector); err != nil {
		return domain.Event{}, err
	}
	title = identity.NormalizeText(title)
	description = identity.NormalizeText(description)
	if title == "" {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEmptyTitle)
	}
	if description == "" {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrEmptyDescription)
	}
	if id, ok := l.titles[title]; ok {
		return domain.Event{}, fmt.Errorf("%s: %q is task %d: %w", op, title, id, ErrDuplicateTitle)
	}

	t := domain.Task{
		ID:          l.nextTaskID,
		CreatedAt:   l.clock(),
		CreatedBy:   caller,
		Title:       title,
		Description: description,
		ApprovedBy:  []identity.Address{},
		IsApproved:  l.ActiveStakeholderCount() == 0,
	}
	l.nextTaskID++
	l.taskIdx[t.ID] = len(l.tasks)
	l.titles[t.Title] = t.ID
	l.tasks = append(l.tasks, t)

	return l.event(domain.EventTaskAdded, caller, "task", taskKey(t.ID), domain.EventPayload{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"approved":    t.IsApproved,
	}), nil
}

// ApproveTask records caller's vote for task id and closes the task once the
// share of active stakeholders who voted reaches the approval percentage.
func (l *Ledger) ApproveTask(caller identity.Address, id int64) (domain.Event, error) {
	const op = "approve task"
	if err := l.authorize(op, caller, domain.RoleStakeholder); err != nil {
		return domain.Event{}, err
	}
	i, ok := l.taskIdx[id]
	if !ok {
		return domain.Event{}, fmt.Errorf("%s: %d: %w", op, id, ErrTaskNotFound)
	}
	t := &l.tasks[i]
	// A repeat voter learns about its own vote even when the task is closed.
	if t.HasApproval(caller) {
		return domain.Event{}, fmt.Errorf("%s: %d: %w", op, id, ErrAlreadyApprovedByCaller)
	}
	if t.IsApproved {
		return domain.Event{}, fmt.Errorf("%s: %d: %w", op, id, ErrAlreadyApproved)
	}

	t.ApprovedBy = append(t.ApprovedBy, caller)
	if approvalRatio(len(t.ApprovedBy), l.ActiveStakeholderCount()) >= uint64(l.org.TaskApprovalPercentage) {
		t.IsApproved = true
	}
	return l.event(domain.EventTaskApproved, caller, "task", taskKey(t.ID), domain.EventPayload{
		"id":       t.ID,
		"title":    t.Title,
		"voter":    caller.String(),
		"votes":    len(t.ApprovedBy),
		"approved": t.IsApproved,
	}), nil
}

// approvalRatio is the integer percentage of active stakeholders that voted.
// The caller is always an active stakeholder, so active is never zero.
func approvalRatio(votes, active int) uint64 {
	if active == 0 {
		return 100
	}
	return 100 * uint64(votes) / uint64(active)
}

// Tasks lists every task in creation order.
func (l *Ledger) Tasks() []domain.Task {
	out := make([]domain.Task, len(l.tasks))
	for i, t := range l.tasks {
		out[i] = copyTask(t)
	}
	return out
}

func (l *Ledger) Task(id int64) (domain.Task, error) {
	i, ok := l.taskIdx[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return copyTask(l.tasks[i]), nil
}

func copyTask(t domain.Task) domain.Task {
	t.ApprovedBy = append([]identity.Address{}, t.ApprovedBy...)
	return t
}
