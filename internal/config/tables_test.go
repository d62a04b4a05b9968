package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)

	assert.Equal(t, 11, tables.Environment.OldestGeneration)
	assert.Equal(t, 13, tables.Environment.LatestGeneration)
	assert.Equal(t, 4, tables.Environment.NewMajor)
	assert.NotEmpty(t, tables.Environment.Probes)
	assert.NotEmpty(t, tables.Deprecation.Patterns)

	names := make(map[string]EventSpec)
	for _, ev := range tables.Events {
		names[ev.Name] = ev
	}
	require.Contains(t, names, "actorCreated")
	require.Contains(t, names, "rollCompleted")

	roll := names["rollCompleted"]
	require.Len(t, roll.Mappings, 2)
	assert.Equal(t, 12, roll.Mappings[0].MaxGeneration)
	assert.Len(t, roll.Mappings[0].Natives, 3)
	assert.Equal(t, "attack", roll.Mappings[0].Natives[0].Kind)
	assert.Equal(t, []int{1, 0}, roll.Mappings[0].Natives[0].Args)

	unified := roll.Mappings[1].Natives[0]
	require.NotNil(t, unified.KindFrom)
	assert.Equal(t, 1, unified.KindFrom.Arg)
	assert.Equal(t, "type", unified.KindFrom.Key)

	var stages []string
	for _, p := range tables.Patches {
		stages = append(stages, p.Stage)
	}
	assert.Contains(t, stages, "bootstrap")
	assert.Contains(t, stages, "post-activation")
}

func TestLoadTables_EmptyPathUsesEmbedded(t *testing.T) {
	loaded, err := LoadTables("")
	require.NoError(t, err)

	def, err := DefaultTables()
	require.NoError(t, err)
	assert.Equal(t, def, loaded)
}

func TestLoadTables_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.toml")
	data := `
[environment]
oldest_generation = 12

[[events]]
name = "ready"
  [[events.mappings]]
  natives = [{ name = "ready" }]

[[patches]]
name = "flag"
action = "set"
path = "a.b"
value = 3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, 12, tables.Environment.OldestGeneration)
	require.Len(t, tables.Patches, 1)
	assert.EqualValues(t, 3, tables.Patches[0].Value)
}

func TestLoadTables_Missing(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestParseTables_Syntax(t *testing.T) {
	_, err := ParseTables("bad.toml", []byte("[environment\noldest = 1"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.toml", perr.Path)
	assert.Contains(t, perr.Error(), "bad.toml")
}

func TestParseTables_UnknownField(t *testing.T) {
	_, err := ParseTables("x.toml", []byte("[environment]\nnewest = 3\n"))
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestTablesValidate(t *testing.T) {
	tests := []struct {
		name   string
		tables Tables
		want   string
	}{
		{
			name:   "inverted bounds",
			tables: Tables{Environment: EnvironmentSpec{OldestGeneration: 14, LatestGeneration: 13}},
			want:   "environment",
		},
		{
			name:   "negative",
			tables: Tables{Environment: EnvironmentSpec{NewMajor: -1}},
			want:   "negative",
		},
		{
			name:   "unnamed event",
			tables: Tables{Events: []EventSpec{{}}},
			want:   "no name",
		},
		{
			name: "unnamed native",
			tables: Tables{Events: []EventSpec{{
				Name:     "ready",
				Mappings: []MappingSpec{{Natives: []NativeSpec{{}}}},
			}}},
			want: "native without a name",
		},
		{
			name:   "patch without action",
			tables: Tables{Patches: []PatchSpec{{Name: "p"}}},
			want:   "missing action",
		},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tables.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, (&Tables{}).Validate())
}

func TestParseErrorFormat(t *testing.T) {
	assert.Equal(t, "parse error in f: m", (&ParseError{Path: "f", Message: "m"}).Error())
	assert.Equal(t, "parse error in f at line 2: m", (&ParseError{Path: "f", Line: 2, Message: "m"}).Error())
	assert.Equal(t, "parse error in f at line 2, column 3: m",
		(&ParseError{Path: "f", Line: 2, Column: 3, Message: "m"}).Error())

	inner := errors.New("inner")
	assert.ErrorIs(t, &ParseError{Err: inner}, inner)
}
