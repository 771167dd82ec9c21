package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polling/internal/domain"
	"polling/internal/ledger"
)

const (
	ownerAddr    = "0x00000000000000000000000000000000000000aa"
	directorAddr = "0x00000000000000000000000000000000000000d1"
	voterAddr    = "0x0000000000000000000000000000000000000001"
)

func run(t *testing.T, workspace string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--workspace", workspace}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, workspace string, args ...string) string {
	t.Helper()
	out, err := run(t, workspace, args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

func TestGovernanceFlow(t *testing.T) {
	ws := t.TempDir()
	mustRun(t, ws, "config", "init", "--owner-address", ownerAddr)
	_, err := run(t, ws, "config", "init", "--owner-address", ownerAddr)
	require.Error(t, err)
	assert.Contains(t, mustRun(t, ws, "config", "validate"), "config OK")

	out := mustRun(t, ws, "deploy")
	assert.Contains(t, out, "Green Group LLC")
	_, err = run(t, ws, "deploy")
	require.Error(t, err)

	mustRun(t, ws, "--as", ownerAddr, "director", "add", directorAddr, "--name", "Dana")
	assert.Equal(t, "Director\n", mustRun(t, ws, "role", directorAddr))
	assert.Equal(t, "Dana\n", mustRun(t, ws, "name", directorAddr))
	assert.Equal(t, domain.ExternalName+"\n", mustRun(t, ws, "name", voterAddr))

	mustRun(t, ws, "--as", voterAddr, "stake", "--name", "Vic", "--amount", "10")
	out = mustRun(t, ws, "--json", "--as", directorAddr, "task", "add", "--title", "Roof", "--description", "Fix the roof")
	var task domain.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.EqualValues(t, 1, task.ID)
	assert.False(t, task.IsApproved)

	out = mustRun(t, ws, "--json", "--as", voterAddr, "task", "approve", "1")
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	assert.True(t, task.IsApproved)

	_, err = run(t, ws, "--as", voterAddr, "withdraw", "--amount", "10")
	assert.True(t, errors.Is(err, ledger.ErrNotVested), "got %v", err)
	_, err = run(t, ws, "--as", voterAddr, "task", "add", "--title", "x", "--description", "y")
	assert.True(t, errors.Is(err, ledger.ErrUnauthorized), "got %v", err)

	out = mustRun(t, ws, "--json", "log", "tail", "-n", "10")
	var events []domain.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 5)
	assert.Equal(t, domain.EventTaskApproved, events[0].Type)
	assert.Equal(t, domain.EventDeployed, events[4].Type)

	out = mustRun(t, ws, "--json", "log", "tail", "--after", "3")
	var later []domain.Event
	require.NoError(t, json.Unmarshal([]byte(out), &later))
	require.Len(t, later, 2)
	assert.Equal(t, domain.EventTaskAdded, later[0].Type)
	assert.Equal(t, domain.EventTaskApproved, later[1].Type)

	out = mustRun(t, ws, "task", "show", "1")
	assert.Contains(t, out, "Fix the roof")
	assert.Contains(t, out, "Votes")
	assert.NotContains(t, out, "{")
	out = mustRun(t, ws, "config", "show")
	assert.Contains(t, out, "Vesting period")
	assert.Contains(t, out, "365 days")
	assert.NotContains(t, out, "{")

	assert.Contains(t, mustRun(t, ws, "org"), "10")
	assert.Contains(t, mustRun(t, ws, "stakeholder", "list"), "Vic")
	assert.Contains(t, mustRun(t, ws, "task", "list"), "Roof")
}

func TestCallerRequired(t *testing.T) {
	t.Setenv("POLLING_AS", "")
	ws := t.TempDir()
	mustRun(t, ws, "config", "init", "--owner-address", ownerAddr)
	_, err := run(t, ws, "stake", "--name", "Vic", "--amount", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--as")
}

func TestCommandsNeedDeployment(t *testing.T) {
	ws := t.TempDir()
	_, err := run(t, ws, "org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not deployed")
}
