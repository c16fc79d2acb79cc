package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/rbac"
	"github.com/Hons90/CRM/internal/testutil"
	"github.com/Hons90/CRM/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const fixture = `
users:
  - name: Admin
    email: admin@example.com
    password: change-me
    role: admin
  - name: Agent
    email: agent@example.com
    password: agent-pass
pools:
  - name: Leads Q1
    numbers: ["5551234", "abc", "", "999"]
`

func newTestEnv(t *testing.T) *env {
	t.Helper()
	return newEnv(testutil.NewDB(t), logger.NewTo(io.Discard, "test"))
}

func TestParseSeed(t *testing.T) {
	s, err := ParseSeed(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, s.Users, 2)
	assert.Equal(t, rbac.RoleAdmin, s.Users[0].Role)
	assert.Equal(t, "", s.Users[1].Role)
	require.Len(t, s.Pools, 1)
	assert.Equal(t, []string{"5551234", "abc", "", "999"}, s.Pools[0].Numbers)

	_, err = ParseSeed(strings.NewReader("users:\n  - nmae: typo\n"))
	assert.Error(t, err)

	empty, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
}

func TestApplySeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	s, err := ParseSeed(strings.NewReader(fixture))
	require.NoError(t, err)

	rep, err := e.applySeed(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{UsersCreated: 2, PoolsCreated: 1, NumbersImported: 2}, rep)

	rep, err = e.applySeed(ctx, Seed{Users: s.Users})
	require.NoError(t, err)
	assert.Equal(t, SeedReport{UsersExisting: 2}, rep)

	list, err := e.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	var out bytes.Buffer
	printSeedReport(&out, SeedReport{UsersCreated: 1, UsersExisting: 1})
	assert.Contains(t, out.String(), "users already present: 1")
}

func TestApplySeed_InvalidUser(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.applySeed(context.Background(), Seed{Users: []SeedUser{{Name: "x", Email: "x@example.com", Password: "1"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	p, err := e.registry.CreatePool(ctx, "Leads", nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	require.NoError(t, f.SetCellValue(sheet, "A1", "5551234"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "not a number"))
	require.NoError(t, f.SetCellValue(sheet, "A3", 999))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := e.importFile(ctx, p.ID, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.TotalRows)

	_, err = e.importFile(ctx, p.ID, filepath.Join(t.TempDir(), "leads.csv"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.importFile(ctx, 404, path)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var out bytes.Buffer
	require.NoError(t, e.listPools(ctx, &out))
	assert.Contains(t, out.String(), "Leads")

	events, err := e.events.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeCLI, events[0].Type)
	assert.Equal(t, audit.TargetPool, events[0].TargetType)
	assert.Contains(t, events[0].Metadata, `"imported":2`)
}

func TestRootCmd_Commands(t *testing.T) {
	root := RootCmd()
	for _, path := range [][]string{
		{"migrate"}, {"seed"}, {"import"}, {"audit"},
		{"pool", "list"}, {"pool", "create"},
		{"user", "create"}, {"user", "list"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], firstWord(cmd), path)
	}
}

func firstWord(cmd *cobra.Command) string {
	return strings.Fields(cmd.Use)[0]
}

func TestPrintEvents_Empty(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	printEvents(cmd, nil)
	assert.Contains(t, out.String(), "no audit events")
}
