package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonstreamer/internal/emitter"
	"github.com/roach88/jsonstreamer/internal/source"
)

func TestCheckDocument(t *testing.T) {
	doc, err := source.Parse("main.json", []byte(fixture))
	require.NoError(t, err)

	result, err := checkDocument(context.Background(), "main.json", doc)
	require.NoError(t, err)

	want := &CheckResult{
		Document:   "main.json",
		Kind:       "object",
		Len:        3,
		Bytes:      45,
		Characters: 45,
		Modes: []ModeSummary{
			{Mode: emitter.ModeDelta, Fragments: 9, EndMarker: true, Duration: "1.8s"},
			{Mode: emitter.ModeSnapshot, Fragments: 4, EndMarker: true, Duration: "10s"},
			{Mode: emitter.ModeRaw, Fragments: 45, EndMarker: false, Duration: "450ms"},
		},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("checkDocument mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckDocument_CountsCharacters(t *testing.T) {
	doc, err := source.Parse("s.json", []byte(`"héllo"`))
	require.NoError(t, err)

	result, err := checkDocument(context.Background(), "s.json", doc)
	require.NoError(t, err)
	assert.Equal(t, "scalar", result.Kind)
	assert.Equal(t, 1, result.Len)
	assert.Equal(t, 8, result.Bytes)
	assert.Equal(t, 7, result.Characters)
	assert.Equal(t, 7, result.Modes[2].Fragments)
	assert.Equal(t, 1, result.Modes[1].Fragments, "a scalar has a single snapshot")
}

func TestCheck_Text(t *testing.T) {
	path := fixturePath(t, fixture)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"check", path})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "✓ "+path+" is servable")
	assert.Contains(t, out, "object (3 top-level)")
	assert.Contains(t, out, "45 bytes, 45 characters")
	assert.Contains(t, out, "snapshot:   4 fragments + end over 10s")
	assert.Contains(t, out, "raw:        45 fragments over 450ms")
}

func TestCheck_JSON(t *testing.T) {
	path := fixturePath(t, `[1, 2]`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--format", "json", "check", path})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "array", resp.Data.Kind)
	assert.Equal(t, 2, resp.Data.Len)
	assert.Equal(t, path, resp.Data.Path)
	require.Len(t, resp.Data.Modes, 3)
	assert.Equal(t, 3, resp.Data.Modes[1].Fragments)
}

func TestCheck_MissingDocument(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--format", "json", "check", "missing-document.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SOURCE_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "could not load missing-document.json file", resp.Error.Message)
}

func TestCheck_InvalidDocument(t *testing.T) {
	path := fixturePath(t, `{"a": 1,}`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"check", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, source.IsInvalid(err))
	assert.Contains(t, buf.String(), "Error [SOURCE_INVALID]")
}
