package patch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hostcompat/internal/config"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/host/hosttest"
)

func detect(t *testing.T, h *hosttest.Fake, probes ...string) environment.Environment {
	t.Helper()
	return environment.NewDetector(h, environment.WithProbes(probes...)).Detect()
}

func TestRegisterTable_Alias(t *testing.T) {
	h := hosttest.New("13.345", "4.1.0")
	h.Define("CONFIG.DND5E.dice", "dice")
	env := detect(t, h, "CONFIG.DND5E.dice", "game.dnd5e.dice")

	r := NewRegistry()
	require.NoError(t, RegisterTable(r, []config.PatchSpec{{
		Name:   "dice-namespace-alias",
		Stage:  "bootstrap",
		Action: ActionAlias,
		From:   "CONFIG.DND5E.dice",
		To:     "game.dnd5e.dice",
		When: config.ConditionSpec{
			MinDependency: 4,
			Present:       []string{"CONFIG.DND5E.dice"},
			Absent:        []string{"game.dnd5e.dice"},
		},
	}}, h))

	r.ApplyStage(env, StageBootstrap)

	st, _ := r.Status("dice-namespace-alias")
	assert.Equal(t, StatusApplied, st)
	v, found, err := h.Lookup("game.dnd5e.dice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dice", v)
}

func TestRegisterTable_SetAndFailure(t *testing.T) {
	h := hosttest.New("12.331", "3.3.1")
	h.SetErr = errors.New("read-only namespace")
	env := detect(t, h)

	r := NewRegistry()
	require.NoError(t, RegisterTable(r, []config.PatchSpec{
		{Name: "flag", Action: ActionSet, Path: "hostcompat.flag", Value: true},
		{Name: "after", Action: ActionAlias, From: "x", To: "y"},
	}, h))

	r.ApplyAll(env)

	report := r.Report()
	require.Len(t, report, 2)
	assert.Equal(t, StatusFailed, report[0].Status)
	assert.Equal(t, "read-only namespace", report[0].Error)
	// Alias source missing: isolated failure, still attempted.
	assert.Equal(t, StatusFailed, report[1].Status)
}

func TestRegisterTable_Invalid(t *testing.T) {
	h := hosttest.New("13", "4")

	tests := []struct {
		name string
		spec config.PatchSpec
		want error
	}{
		{"unknown action", config.PatchSpec{Name: "p", Action: "delete"}, ErrUnknownAction},
		{"unknown stage", config.PatchSpec{Name: "p", Action: ActionSet, Path: "a", Stage: "later"}, ErrInvalidPatch},
		{"alias without target", config.PatchSpec{Name: "p", Action: ActionAlias, From: "a"}, ErrInvalidPatch},
		{"set without path", config.PatchSpec{Name: "p", Action: ActionSet}, ErrInvalidPatch},
	}
	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterTable(NewRegistry(), []config.PatchSpec{tt.spec}, h)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	r := NewRegistry()
	dup := config.PatchSpec{Name: "p", Action: ActionSet, Path: "a"}
	assert.ErrorIs(t, RegisterTable(r, []config.PatchSpec{dup, dup}, h), ErrDuplicatePatch)
}

func TestRegisterTable_DefaultTables(t *testing.T) {
	tables, err := config.DefaultTables()
	require.NoError(t, err)

	h := hosttest.New("13.345", "4.1.0")
	r := NewRegistry()
	require.NoError(t, RegisterTable(r, tables.Patches, h))
	assert.Equal(t, len(tables.Patches), r.Len())
}

func TestCondition(t *testing.T) {
	h := hosttest.New("12.331", "3.3.1")
	h.ActiveCompanions = []string{"lib-wrapper"}
	h.Define("present.ns", struct{}{})
	h.FailLookup("unknown.ns")
	env := detect(t, h, "present.ns", "absent.ns", "unknown.ns")

	tests := []struct {
		name string
		cond config.ConditionSpec
		want bool
	}{
		{"empty", config.ConditionSpec{}, true},
		{"generation in range", config.ConditionSpec{MinGeneration: 11, MaxGeneration: 12}, true},
		{"generation too old", config.ConditionSpec{MinGeneration: 13}, false},
		{"generation too new", config.ConditionSpec{MaxGeneration: 11}, false},
		{"dependency range", config.ConditionSpec{MinDependency: 3, MaxDependency: 3}, true},
		{"dependency too old", config.ConditionSpec{MinDependency: 4}, false},
		{"flag set", config.ConditionSpec{Flags: []string{"host.legacy"}}, true},
		{"flag unset", config.ConditionSpec{Flags: []string{"dependency.new-major"}}, false},
		{"companion", config.ConditionSpec{Companions: []string{"lib-wrapper"}}, true},
		{"missing companion", config.ConditionSpec{Companions: []string{"midi-qol"}}, false},
		{"present", config.ConditionSpec{Present: []string{"present.ns"}}, true},
		{"present but absent", config.ConditionSpec{Present: []string{"absent.ns"}}, false},
		{"present but unknown", config.ConditionSpec{Present: []string{"unknown.ns"}}, false},
		{"absent", config.ConditionSpec{Absent: []string{"absent.ns"}}, true},
		{"absent accepts unknown", config.ConditionSpec{Absent: []string{"unknown.ns"}}, true},
		{"absent but present", config.ConditionSpec{Absent: []string{"present.ns"}}, false},
	}
	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Condition(tt.cond)(env))
		})
	}
}
