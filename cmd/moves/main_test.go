package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tienda-moves/internal/utils"
)

type cliEnv struct {
	dir      string
	database string
	revDir   string
}

func setupCLI(t *testing.T) *cliEnv {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	return &cliEnv{
		dir:      dir,
		database: "sqlite:///" + filepath.Join(dir, "db.db"),
		revDir:   filepath.Join(dir, "migrations"),
	}
}

// run executes one command line against a fresh root command
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--database", e.database, "--directory", e.revDir, "--log-level", "debug"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(t, args...)
	require.NoError(t, err, errOut)
	return out
}

func TestCLI_FlagsBelongToOneRoot(t *testing.T) {
	first := newRootCmd(io.Discard, io.Discard)
	require.NoError(t, first.PersistentFlags().Set("table", "other_ledger"))

	second := newRootCmd(io.Discard, io.Discard)
	assert.Equal(t, "", second.PersistentFlags().Lookup("table").Value.String())
	assert.Equal(t, "other_ledger", first.PersistentFlags().Lookup("table").Value.String())
}

func TestCLI_Info(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "info")
	assert.Contains(t, out, "driver")
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, filepath.Join(env.dir, "db.db"))
}

func TestCLI_StatusEmpty(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "status")
	assert.Equal(t, "no revisions found\n", out)
}

func TestCLI_RevisionLifecycle(t *testing.T) {
	env := setupCLI(t)

	assert.Equal(t, "created: 0001_init\n", env.mustRun(t, "revision", "init"))
	assert.Equal(t, "created: 0002_add_things\n", env.mustRun(t, "revision", "Add", "Things"))
	assert.Equal(t, "created: 0003_auto_migration\n", env.mustRun(t, "revision"))

	out := env.mustRun(t, "status")
	assert.Equal(t, 3, strings.Count(out, "[ ]"))
	assert.NotContains(t, out, "[x]")

	env.mustRun(t, "upgrade", "2")
	out = env.mustRun(t, "status")
	assert.Equal(t, 2, strings.Count(out, "[x]"))
	assert.Equal(t, 1, strings.Count(out, "[ ]"))

	env.mustRun(t, "upgrade")
	out = env.mustRun(t, "status")
	assert.Equal(t, 3, strings.Count(out, "[x]"))

	// without a target only the latest revision is reverted
	env.mustRun(t, "downgrade")
	out = env.mustRun(t, "status")
	assert.Equal(t, 2, strings.Count(out, "[x]"))

	env.mustRun(t, "downgrade", "1")
	out = env.mustRun(t, "status")
	assert.Equal(t, 3, strings.Count(out, "[ ]"))
}

func TestCLI_UpgradeFake(t *testing.T) {
	env := setupCLI(t)

	env.mustRun(t, "create", "tienda.usuario")
	env.mustRun(t, "upgrade", "--fake")

	out := env.mustRun(t, "status")
	assert.Contains(t, out, "[x]")

	// faked revisions never ran, so seeding has no tables to write to
	_, _, err := env.run(t, "seed")
	require.Error(t, err)
	assert.True(t, utils.IsDatabaseError(err))
}

func TestCLI_CreateTiendaAndSeed(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "create", "tienda")
	assert.Equal(t, []string{
		"created: 0001_create_table_usuario",
		"created: 0002_create_table_producto",
		"created: 0003_create_table_comentario",
		"created: 0004_create_table_compra",
		"created: 0005_create_table_detallecompra",
		"created: 0006_create_table_listadeseos",
	}, strings.Split(strings.TrimSpace(out), "\n"))

	env.mustRun(t, "upgrade")

	out = env.mustRun(t, "seed")
	assert.Equal(t, []string{"usuario", "3", "0"}, tableRow(out, "usuario"))
	assert.Equal(t, []string{"listadeseos", "1", "0"}, tableRow(out, "listadeseos"))

	// a second run finds every row already there
	out = env.mustRun(t, "seed")
	assert.Equal(t, []string{"usuario", "0", "3"}, tableRow(out, "usuario"))
	assert.Equal(t, []string{"producto", "0", "4"}, tableRow(out, "producto"))
}

func tableRow(out, first string) []string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == first {
			return fields
		}
	}
	return nil
}

func TestCLI_CreateList(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "create", "--list")
	assert.Equal(t, []string{"tienda", "usuario,", "producto,", "comentario,", "compra,", "detallecompra,", "listadeseos"}, tableRow(out, "tienda"))

	// listing writes no revisions
	assert.Equal(t, "no revisions found\n", env.mustRun(t, "status"))

	_, _, err := env.run(t, "create", "--list", "tienda")
	assert.Error(t, err)
}

func TestCLI_StatusTruncatesLongIDs(t *testing.T) {
	env := setupCLI(t)

	env.mustRun(t, "revision", strings.Repeat("x", 80))

	row := tableRow(env.mustRun(t, "status"), "[")
	require.Len(t, row, 3)
	assert.Equal(t, "]", row[1])
	assert.True(t, strings.HasPrefix(row[2], "0001_xxx"))
	assert.LessOrEqual(t, len([]rune(row[2])), 64)
}

func TestCLI_Delete(t *testing.T) {
	env := setupCLI(t)

	env.mustRun(t, "revision", "one")
	env.mustRun(t, "revision", "two")
	env.mustRun(t, "upgrade")

	env.mustRun(t, "delete", "2")

	out := env.mustRun(t, "status")
	assert.Contains(t, out, "0001_one")
	assert.NotContains(t, out, "0002_two")
}

func TestCLI_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		args  []string
		check func(error) bool
	}{
		{
			name: "delete unknown revision",
			args: []string{"delete", "42"},
			check: func(err error) bool {
				return utils.IsAmbiguousError(err)
			},
		},
		{
			name:  "downgrade with nothing applied",
			setup: []string{"revision", "init"},
			args:  []string{"downgrade"},
			check: func(err error) bool {
				return err != nil
			},
		},
		{
			name: "create unknown model",
			args: []string{"create", "nope"},
			check: func(err error) bool {
				return utils.IsNotFoundError(err)
			},
		},
		{
			name: "create needs a target",
			args: []string{"create"},
			check: func(err error) bool {
				return err != nil
			},
		},
		{
			name: "bad database url",
			args: []string{"--database", "mysql://localhost/db", "status"},
			check: func(err error) bool {
				return err != nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLI(t)
			if len(tt.setup) > 0 {
				env.mustRun(t, tt.setup...)
			}

			_, _, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestCLI_Token(t *testing.T) {
	env := setupCLI(t)
	t.Setenv("JWT_SECRET", "cli-secret")

	out := env.mustRun(t, "token", "--subject", "alice", "--ttl", "1h")
	raw := strings.TrimSpace(out)

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "alice", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestCLI_TokenRequiresSubject(t *testing.T) {
	env := setupCLI(t)

	_, _, err := env.run(t, "token", "--subject", "")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
}
