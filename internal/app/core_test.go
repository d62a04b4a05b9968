package app

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/hostcompat/internal/config"
	"github.com/dshills/hostcompat/internal/environment"
	"github.com/dshills/hostcompat/internal/event"
	"github.com/dshills/hostcompat/internal/hook"
	"github.com/dshills/hostcompat/internal/host/hosttest"
	"github.com/dshills/hostcompat/internal/patch"
)

// latestHost is a generation 13 host with the new dependency major and the
// namespaces the default alias patches copy from.
func latestHost() *hosttest.Fake {
	h := hosttest.New("13.345", "4.1.0")
	h.Define("CONFIG.DND5E.dice", map[string]any{"d20": true})
	h.Define("foundry.applications.apps.DocumentSheetConfig", "sheet-config")
	return h
}

func newCore(t *testing.T, h *hosttest.Fake) *Core {
	t.Helper()
	c, err := New(h, nil, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestBoot_DefaultTables(t *testing.T) {
	h := latestHost()
	c := newCore(t, h)

	require.NoError(t, c.Boot(context.Background()))
	assert.Equal(t, StageActive, c.Stage())

	env, ok := c.Environment()
	require.True(t, ok)
	assert.Equal(t, 13, env.Generation)
	assert.Equal(t, 4, env.DependencyMajor)
	assert.True(t, env.Flag(environment.FlagNewMajor))

	statuses := map[string]patch.Status{}
	for _, e := range c.Patches().Report() {
		statuses[e.Name] = e.Status
	}
	assert.Equal(t, map[string]patch.Status{
		"dice-namespace-alias":        patch.StatusApplied,
		"document-sheet-config-alias": patch.StatusApplied,
		"chat-html-jquery-flag":       patch.StatusSkipped,
		"legacy-spell-progression":    patch.StatusSkipped,
	}, statuses)

	v, found, err := h.Lookup("game.dnd5e.dice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"d20": true}, v)
}

func TestBoot_LegacyHost(t *testing.T) {
	h := hosttest.New("11.315", "3.3.1")
	h.Define("CONFIG.DND5E.spellProgression", map[string]any{})
	c := newCore(t, h)

	require.NoError(t, c.Boot(context.Background()))

	for name, want := range map[string]patch.Status{
		"dice-namespace-alias":     patch.StatusSkipped,
		"chat-html-jquery-flag":    patch.StatusApplied,
		"legacy-spell-progression": patch.StatusApplied,
	} {
		got, ok := c.Patches().Status(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	v, found, err := h.Lookup("hostcompat.chat.jquery")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, true, v)
}

func TestStageOrder(t *testing.T) {
	ctx := context.Background()
	c := newCore(t, latestHost())

	err := c.PreActivate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStageOrder))

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBootstrapped, stageErr.Want)
	assert.Equal(t, StageNew, stageErr.Current)

	require.NoError(t, c.Bootstrap(ctx))
	assert.ErrorIs(t, c.Bootstrap(ctx), ErrStageOrder)
	assert.ErrorIs(t, c.PostActivate(ctx), ErrStageOrder)

	require.NoError(t, c.PreActivate(ctx))
	require.NoError(t, c.PostActivate(ctx))
	assert.ErrorIs(t, c.Boot(ctx), ErrStageOrder)
	assert.Equal(t, StageActive, c.Stage())
}

func TestBootstrap_CanceledContext(t *testing.T) {
	c := newCore(t, latestHost())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Bootstrap(ctx), context.Canceled)
	assert.Equal(t, StageNew, c.Stage())

	_, ok := c.Environment()
	assert.False(t, ok)
}

func TestFeaturePatchBeforeBootstrap(t *testing.T) {
	c := newCore(t, latestHost())

	var seen int
	require.NoError(t, c.Patches().Register("feature", func(env environment.Environment) bool {
		return env.Generation >= 13
	}, func() error {
		seen++
		return nil
	}, patch.WithStage(patch.StageBootstrap)))

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, 1, seen)

	status, _ := c.Patches().Status("feature")
	assert.Equal(t, patch.StatusApplied, status)
}

func TestActorCreated_EndToEnd(t *testing.T) {
	h := latestHost()
	c := newCore(t, h)

	var got []event.Event
	_, err := c.Listeners().OnFunc("actorCreated", func(_ context.Context, ev event.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Boot(context.Background()))

	doc := map[string]any{"name": "Goblin"}
	h.Fire("createActor", doc, map[string]any{}, "user-1")

	require.Len(t, got, 1)
	assert.Equal(t, "actorCreated", got[0].Name)
	assert.Equal(t, "createActor", got[0].Native)
	assert.Equal(t, doc, got[0].Arg(0))
}

func TestDeprecationFilter_InstallAndShutdown(t *testing.T) {
	h := latestHost()
	c, err := New(h, nil)
	require.NoError(t, err)

	require.NoError(t, c.Bootstrap(context.Background()))

	h.Warn("The Application V1 framework is deprecated")
	h.Warn("Token missing an image")
	assert.Equal(t, 1, h.WarningCount())

	c.Shutdown()
	c.Shutdown()

	h.Warn("The Application V1 framework is deprecated")
	assert.Equal(t, 2, h.WarningCount())
}

func TestDiagnostics(t *testing.T) {
	h := latestHost()
	c := newCore(t, h)
	require.NoError(t, c.Boot(context.Background()))

	h.Warn("The Application V1 framework is deprecated")

	r := c.Diagnostics()
	assert.Equal(t, 13, r.Environment.Generation)

	hotbar, ok := r.Event("hotbarDrop")
	require.True(t, ok)
	assert.False(t, hotbar.Bound)
	assert.Equal(t, "no native mapping for generation 13", hotbar.Reason)

	chat, ok := r.Event("chatMessageRendered")
	require.True(t, ok)
	assert.True(t, chat.Bound)
	assert.Equal(t, []string{"renderChatMessageHTML"}, chat.Natives)

	entry, ok := r.Patch("dice-namespace-alias")
	require.True(t, ok)
	assert.Equal(t, patch.StatusApplied, entry.Status)

	assert.True(t, r.Deprecation.Installed)
	assert.Equal(t, int64(1), r.Deprecation.Suppressed)

	v, ok := r.Metric("hostcompat_patches_total", map[string]string{"status": "applied"})
	require.True(t, ok)
	assert.Equal(t, float64(2), v)
}

func TestDiagnostics_BeforePreActivate(t *testing.T) {
	c := newCore(t, latestHost())

	_, err := c.Listeners().OnFunc("actorCreated", func(context.Context, event.Event) error { return nil })
	require.NoError(t, err)
	_, err = c.Listeners().OnFunc("custom", func(context.Context, event.Event) error { return nil })
	require.NoError(t, err)

	require.NoError(t, c.Bootstrap(context.Background()))
	r := c.Diagnostics()

	actor, ok := r.Event("actorCreated")
	require.True(t, ok)
	assert.False(t, actor.Bound)
	assert.Equal(t, hook.ReasonNotEstablished, actor.Reason)
	assert.Equal(t, 1, actor.Handlers)

	ready, ok := r.Event("ready")
	require.True(t, ok)
	assert.Equal(t, hook.ReasonNotEstablished, ready.Reason)
	assert.Equal(t, 0, ready.Handlers)

	custom, ok := r.Event("custom")
	require.True(t, ok)
	assert.Equal(t, "not in event table", custom.Reason)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilHost)

	tables, err := config.DefaultTables()
	require.NoError(t, err)
	tables.Deprecation.Patterns = append(tables.Deprecation.Patterns, "(")

	_, err = New(latestHost(), tables)
	var compErr *ComponentError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "deprecation", compErr.Component)

	tables, err = config.DefaultTables()
	require.NoError(t, err)
	tables.Patches = append(tables.Patches, config.PatchSpec{Name: "broken", Action: "delete"})

	_, err = New(latestHost(), tables)
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "patch", compErr.Component)
	assert.ErrorIs(t, err, patch.ErrUnknownAction)
}

func TestNew_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(latestHost(), nil, WithRegistry(reg))
	require.NoError(t, err)

	_, err = New(latestHost(), nil, WithRegistry(reg))
	var compErr *ComponentError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "metrics", compErr.Component)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "new", StageNew.String())
	assert.Equal(t, "bootstrapped", StageBootstrapped.String())
	assert.Equal(t, "pre-activated", StagePreActivated.String())
	assert.Equal(t, "active", StageActive.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
