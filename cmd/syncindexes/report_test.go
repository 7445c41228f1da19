package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gogotex/mongomodel/internal/indexsync"
	"github.com/gogotex/mongomodel/internal/memstore"
	"github.com/gogotex/mongomodel/internal/users"
	"github.com/gogotex/mongomodel/pkg/model"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResults() []indexsync.Result {
	return []indexsync.Result{
		{Collection: "users", Outcome: indexsync.OutcomeOK, Duration: 12 * time.Millisecond},
		{Collection: "posts", Outcome: indexsync.OutcomeConflict, Duration: time.Millisecond, Err: errors.New("index conflict")},
	}
}

func TestRenderTable(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "table", sampleResults(), nil))
	out := buf.String()
	require.Contains(t, out, "COLLECTION")
	require.Contains(t, out, "users")
	require.Contains(t, out, "conflict")
	require.Contains(t, out, "index conflict")
	require.NotContains(t, out, "INDEXES")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", sampleResults(), map[string][]string{"users": {"_id_", "email_1"}}))

	var got []row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "12ms", got[0].Duration)
	require.Equal(t, []string{"_id_", "email_1"}, got[0].Indexes)
	require.Equal(t, "index conflict", got[1].Error)
	require.Empty(t, got[1].Indexes)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", sampleResults(), nil))

	var got []row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "posts", got[1].Collection)
	require.Equal(t, indexsync.OutcomeConflict, got[1].Outcome)
}

func TestValidOutput(t *testing.T) {
	require.NoError(t, validOutput("table"))
	require.NoError(t, validOutput("yaml"))
	require.Error(t, validOutput("xml"))
}

func TestListIndexes(t *testing.T) {
	ctx := context.Background()
	col := memstore.NewCollection("users")
	m := model.NewWithCollection[users.User](col, col.Indexes())
	require.NoError(t, m.CreateIndexes(ctx))

	got := listIndexes(ctx, []indexsync.Target{m})
	require.Equal(t, []string{"_id_", "created_at_-1", "email_1", "sub_1", "username_1"}, got["users"])
}

func TestRootCmdRejectsUnknownOutput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--output", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	require.ErrorContains(t, cmd.Execute(), "unknown output format")
}
