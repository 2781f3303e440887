package core

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietCtx() *RunContext {
	ctx := NewRunContext(context.Background(), false)
	ctx.Logger = NewDefaultLogger(io.Discard, LevelError)
	return ctx
}

func TestExecuteTemplateVars(t *testing.T) {
	ctx := quietCtx()
	ctx.Vars["env"] = "staging"

	out, err := ExecuteTemplate("warehouse-{{ .Vars.env }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-staging", out)
}

func TestExecuteTemplateSprigFunctions(t *testing.T) {
	ctx := quietCtx()

	out, err := ExecuteTemplate(`{{ "hello" | upper }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	out, err = ExecuteTemplate(`{{ .Vars.missing | default "fallback" }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestExecuteTemplateParseError(t *testing.T) {
	_, err := ExecuteTemplate("{{ .Vars.env", quietCtx())
	assert.Error(t, err)
}

func TestEvaluateCondition(t *testing.T) {
	ctx := quietCtx()
	ctx.Vars["env"] = "staging"

	ok, err := EvaluateCondition(`vars.env == "staging"`, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateCondition(`vars.env == "production"`, ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateConditionEnvAccess(t *testing.T) {
	t.Setenv("WARDEN_TEST_FLAG", "on")

	ok, err := EvaluateCondition(`env.WARDEN_TEST_FLAG == "on"`, quietCtx())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionNonBool(t *testing.T) {
	_, err := EvaluateCondition(`vars.env`, quietCtx())
	assert.Error(t, err)
}

func TestDiffItemDescribe(t *testing.T) {
	item := DiffItem{Action: ActionCreate, Kind: KindConnection, Name: "warehouse"}
	assert.Equal(t, "[+] CREATE connection 'warehouse'", item.Describe())

	item = DiffItem{Action: ActionDelete, Kind: KindRole, Name: "Obsolete"}
	assert.Equal(t, "[-] DELETE role 'Obsolete'", item.Describe())
}

func TestRenderItemIncludesFieldChanges(t *testing.T) {
	item := DiffItem{
		Action: ActionUpdate,
		Kind:   KindConnection,
		Name:   "warehouse",
		Changes: []FieldChange{
			{Field: "host", Old: "db.internal", New: "db2.internal"},
		},
	}

	out := RenderItem(item)
	assert.Contains(t, out, "[~] UPDATE connection 'warehouse'")
	assert.Contains(t, out, "host: 'db.internal' -> 'db2.internal'")
}

func TestRenderItemListChangeUsesLineDiff(t *testing.T) {
	item := DiffItem{
		Action: ActionUpdate,
		Kind:   KindRole,
		Name:   "Analyst",
		Changes: []FieldChange{
			{Field: "permission_sets", Old: "[Explorer, Legacy]", New: "[Explorer, Modeler]"},
		},
	}

	out := RenderItem(item)
	assert.Contains(t, out, "permission_sets:")
	assert.Contains(t, out, "- Legacy")
	assert.Contains(t, out, "+ Modeler")
	assert.Contains(t, out, "  Explorer")
	assert.NotContains(t, out, "'[Explorer, Legacy]'")
}

func TestRenderItemMultilineChangeUsesLineDiff(t *testing.T) {
	item := DiffItem{
		Action: ActionUpdate,
		Kind:   KindConnection,
		Name:   "warehouse",
		Changes: []FieldChange{
			{Field: "pdt_overrides", Old: "timezone: UTC\npool: small", New: "timezone: UTC\npool: large"},
		},
	}

	out := RenderItem(item)
	assert.Contains(t, out, "pdt_overrides:")
	assert.Contains(t, out, "- pool: small")
	assert.Contains(t, out, "+ pool: large")
	assert.Contains(t, out, "  timezone: UTC")
}

func TestGenerateDiffMarksLines(t *testing.T) {
	out := GenerateDiff("a\nb\n", "a\nc\n")
	assert.Contains(t, out, "- b")
	assert.Contains(t, out, "+ c")
	assert.Contains(t, out, "  a")
}

func TestSummaryRecord(t *testing.T) {
	var s Summary
	s.Record(SuccessChange("ok"))
	s.Record(SuccessNoChange("noop"))
	s.Record(Failure(assert.AnError, "bad"))

	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
}

func TestRunContextHasFreshRunID(t *testing.T) {
	a := NewRunContext(context.Background(), true)
	b := NewRunContext(context.Background(), false)

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.True(t, a.DryRun)
}

func TestLoggerWithAttachesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(&buf, LevelInfo).With("run_id", "run-42")

	logger.Info("applying connection")

	out := buf.String()
	assert.Contains(t, out, "applying connection")
	assert.Contains(t, out, "run_id=run-42")
}
