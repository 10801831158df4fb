package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/tspgrid/dispatch"
	"github.com/katalvlaran/tspgrid/tsp"
	"github.com/katalvlaran/tspgrid/tsplib"
)

const tiny = `NAME : tiny8
COMMENT : eight points
TYPE : TSP
DIMENSION : 8
EDGE_WEIGHT_TYPE : EUC_2D
NODE_COORD_SECTION
1 0 0
2 30 5
3 62 0
4 80 40
5 60 82
6 28 75
7 2 50
8 40 40
EOF
`

func writeInstance(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny8.tsp")
	require.NoError(t, os.WriteFile(path, []byte(tiny), 0o600))

	return path
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

var costLine = regexp.MustCompile(`(?m)^cost: (\d+)$`)

func TestSolve_Local(t *testing.T) {
	path := writeInstance(t)
	inst, err := tsplib.ReadFile(path)
	require.NoError(t, err)
	g, err := inst.Graph(1)
	require.NoError(t, err)
	want, _, err := tsp.Solve(context.Background(), g, 30, tsp.Infinity)
	require.NoError(t, err)

	code, out, errOut := execute("solve", "--workers", "2", "--log-level", "error", "local", path, "30")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "initial upper bound: ")
	require.Contains(t, out, "tour: 0 ")
	m := costLine.FindStringSubmatch(out)
	require.NotNil(t, m, out)
	got, err := strconv.Atoi(m[1])
	require.NoError(t, err)
	require.Equal(t, want.Cost, got)

	// A bound just above the optimum still yields the optimal tour.
	code, out, errOut = execute("solve", "--log-level", "error", "local", path, "30", strconv.Itoa(want.Cost+1))
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "cost: "+strconv.Itoa(want.Cost))

	// Nothing is cheaper than the optimum.
	code, _, errOut = execute("solve", "--log-level", "error", "local", path, "30", strconv.Itoa(want.Cost-1))
	require.Equal(t, exitFailed, code)
	require.Contains(t, errOut, "no tour cheaper than")
}

func TestSolve_BadArguments(t *testing.T) {
	path := writeInstance(t)
	for name, args := range map[string][]string{
		"missing args":    {"solve", "local"},
		"too many":        {"solve", "local", path, "10", "100", "extra"},
		"bad iterations":  {"solve", "local", path, "ten"},
		"zero iterations": {"solve", "local", path, "0"},
		"bad bound":       {"solve", "local", path, "10", "-5"},
		"missing file":    {"solve", "local", filepath.Join(t.TempDir(), "nope.tsp"), "10"},
		"bad flag":        {"solve", "--bogus", "local", path, "10"},
		"bad log level":   {"solve", "--log-level", "loud", "local", path, "10"},
	} {
		code, _, _ := execute(args...)
		require.Equal(t, exitUsage, code, name)
	}

	bad := filepath.Join(t.TempDir(), "bad.tsp")
	require.NoError(t, os.WriteFile(bad, []byte("NAME: x\nDIMENSION: 3\nEDGE_WEIGHT_TYPE: ATT\nNODE_COORD_SECTION\n1 0 0\nEOF\n"), 0o600))
	code, _, errOut := execute("solve", "local", bad, "10")
	require.Equal(t, exitUsage, code)
	require.NotEmpty(t, errOut)
}

func TestToken(t *testing.T) {
	code, out, _ := execute("token", "--secret", "s", "--name", "w1")
	require.Equal(t, exitOK, code)
	require.NoError(t, dispatch.VerifyToken([]byte("s"), strings.TrimSpace(out), "w1"))

	code, _, _ = execute("token", "--name", "w1")
	require.Equal(t, exitUsage, code)
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := execute()
	require.Equal(t, exitUsage, code)
	require.Contains(t, errOut, "usage: tspgrid")

	code, _, _ = execute("frobnicate")
	require.Equal(t, exitUsage, code)

	code, out, _ := execute("help")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "coordinator")

	code, _, _ = execute("worker", "--concurrency", "0")
	require.Equal(t, exitUsage, code)

	code, _, _ = execute("coordinator", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Equal(t, exitUsage, code)
}
