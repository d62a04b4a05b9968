package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/hostcompat/internal/host/hosttest"
)

func TestParseMajor(t *testing.T) {
	tests := []struct {
		raw   string
		major int
		ok    bool
	}{
		{"13.345", 13, true},
		{"12", 12, true},
		{"v11.315", 11, true},
		{"4.3.1", 4, true},
		{"5.0.0-beta.2", 5, true},
		{" 3.3.1 ", 3, true},
		{"", 0, false},
		{"latest", 0, false},
		{"13.x", 0, false},
		{"013.1", 0, false},
	}

	for _, tt := range tests {
		major, ok := ParseMajor(tt.raw)
		assert.Equal(t, tt.ok, ok, "ParseMajor(%q) ok", tt.raw)
		assert.Equal(t, tt.major, major, "ParseMajor(%q) major", tt.raw)
	}
}

func TestDetect_WellFormed(t *testing.T) {
	h := hosttest.New("13.345", "4.3.1")
	h.ActiveCompanions = []string{"lib-wrapper", "dice-so-nice"}
	h.Define("CONFIG.DND5E.spellProgression", map[string]any{})

	env := NewDetector(h,
		WithProbes("CONFIG.DND5E.spellProgression", "CONFIG.DND5E.legacyDice"),
	).Detect()

	assert.Equal(t, 13, env.Generation)
	assert.Equal(t, 4, env.DependencyMajor)
	assert.Equal(t, "13.345", env.HostVersion)
	assert.True(t, env.Flag(FlagHostLatest))
	assert.False(t, env.Flag(FlagHostLegacy))
	assert.True(t, env.Flag(FlagNewMajor))
	assert.False(t, env.Flag(FlagDependencyMissing))
	assert.Equal(t, []string{"dice-so-nice", "lib-wrapper"}, env.Companions())
	assert.Equal(t, ProbePresent, env.Probe("CONFIG.DND5E.spellProgression"))
	assert.Equal(t, ProbeAbsent, env.Probe("CONFIG.DND5E.legacyDice"))
	assert.Equal(t, ProbeUnknown, env.Probe("never.probed"))
	assert.False(t, env.Ambiguous())
}

func TestDetect_NoMetadataIsOldestGeneration(t *testing.T) {
	env := NewDetector(hosttest.New("", "")).Detect()

	assert.Equal(t, DefaultOldestGeneration, env.Generation)
	assert.Equal(t, 0, env.DependencyMajor)
	assert.True(t, env.Flag(FlagDependencyMissing))
	assert.True(t, env.Flag(FlagHostLegacy))
	assert.True(t, env.Ambiguous())
	assert.Len(t, env.Notes(), 2)
}

func TestDetect_NilSource(t *testing.T) {
	var env Environment
	require.NotPanics(t, func() {
		env = NewDetector(nil, WithOldestGeneration(10)).Detect()
	})
	assert.Equal(t, 10, env.Generation)
}

func TestDetect_MalformedAndOldVersions(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"garbage", "not-a-version"},
		{"pre-generation numbering", "0.8.9"},
		{"below oldest", "9.280"},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			env := NewDetector(hosttest.New(tt.version, "3.3.1"), WithOldestGeneration(11)).Detect()
			assert.Equal(t, 11, env.Generation)
			assert.Equal(t, 3, env.DependencyMajor)
			assert.False(t, env.Flag(FlagNewMajor))
			assert.Len(t, env.Notes(), 1)
		})
	}
}

func TestDetect_PanickingSource(t *testing.T) {
	h := hosttest.New("13.1", "4.0.0")
	h.PanicOnVersion = true

	var env Environment
	require.NotPanics(t, func() {
		env = NewDetector(h).Detect()
	})
	assert.Equal(t, DefaultOldestGeneration, env.Generation)
	assert.Equal(t, 4, env.DependencyMajor)
	assert.True(t, env.Ambiguous())
}

func TestDetect_ProbeLookupErrorIsUnknown(t *testing.T) {
	h := hosttest.New("12.331", "3.3.1")
	h.FailLookup("game.dnd5e.dice")

	env := NewDetector(h, WithProbes("game.dnd5e.dice")).Detect()
	assert.Equal(t, ProbeUnknown, env.Probe("game.dnd5e.dice"))
}

func TestDetect_CompanionWatchList(t *testing.T) {
	h := hosttest.New("12.331", "3.3.1")
	h.ActiveCompanions = []string{"lib-wrapper", "unrelated"}

	env := NewDetector(h, WithCompanions("lib-wrapper", "midi-qol")).Detect()
	assert.True(t, env.HasCompanion("lib-wrapper"))
	assert.False(t, env.HasCompanion("unrelated"))
	assert.False(t, env.HasCompanion("midi-qol"))
}

func TestDetect_FlagsAgainstThresholds(t *testing.T) {
	h := hosttest.New("12.331", "5.1.0")
	env := NewDetector(h, WithLatestGeneration(12), WithNewMajor(6)).Detect()

	assert.True(t, env.Flag(FlagHostLatest))
	assert.False(t, env.Flag(FlagHostLegacy))
	assert.False(t, env.Flag(FlagNewMajor))
}

func TestDetect_LogsFallbacks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewDetector(hosttest.New("", "4.0.0"), WithLogger(zap.New(core))).Detect()

	entries := logs.FilterMessage("detection fallback").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "environment", entries[0].LoggerName)
}

func TestEnvironment_AccessorsReturnCopies(t *testing.T) {
	h := hosttest.New("13.1", "4.0.0")
	h.ActiveCompanions = []string{"lib-wrapper"}
	env := NewDetector(h, WithProbes("a.b")).Detect()

	flags := env.Flags()
	flags[FlagNewMajor] = false
	assert.True(t, env.Flag(FlagNewMajor))

	probes := env.Probes()
	probes["a.b"] = ProbePresent
	assert.Equal(t, ProbeAbsent, env.Probe("a.b"))

	companions := env.Companions()
	companions[0] = "changed"
	assert.True(t, env.HasCompanion("lib-wrapper"))
}

func TestEnvironment_ZeroValue(t *testing.T) {
	env := Environment{Generation: 13}
	assert.False(t, env.Flag(FlagNewMajor))
	assert.Empty(t, env.Companions())
	assert.Equal(t, ProbeUnknown, env.Probe("x"))
	assert.False(t, env.Ambiguous())
}

func TestProbe_String(t *testing.T) {
	assert.Equal(t, "present", ProbePresent.String())
	assert.Equal(t, "absent", ProbeAbsent.String())
	assert.Equal(t, "unknown", ProbeUnknown.String())
}
