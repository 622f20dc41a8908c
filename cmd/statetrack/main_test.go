package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runArgs(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const (
	twoReplicas   = "name: web\nspec:\n  replicas: 2\n"
	threeReplicas = "name: web\nspec:\n  replicas: 3\n"
)

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	b := writeFile(t, dir, "b.yaml", threeReplicas)
	c := writeFile(t, dir, "c.yaml", twoReplicas)

	code, out, errOut := runArgs("diff", a, b)
	require.Equal(t, exitDiff, code, errOut)
	require.Equal(t, "Object [spec] [replicas] x: 2 y: 3\n", out)

	code, out, _ = runArgs("diff", a, c)
	require.Equal(t, exitEqual, code)
	require.Empty(t, out)
}

func TestDiffMixesYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	b := writeFile(t, dir, "b.json", `{"name": "web", "spec": {"replicas": 2}}`)

	code, out, errOut := runArgs("diff", a, b)
	require.Equal(t, exitEqual, code, errOut)
	require.Empty(t, out)
}

func TestDiffPath(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"items": [{"name": "a"}, {"name": "b"}]}`)
	b := writeFile(t, dir, "b.json", `{"items": [{"name": "a"}, {"name": "c"}]}`)

	code, out, errOut := runArgs("diff", "--path", "items.1.name", a, b)
	require.Equal(t, exitDiff, code, errOut)
	require.Equal(t, "string x: b y: c\n", out)

	code, _, _ = runArgs("diff", "--path", "items.0", a, b)
	require.Equal(t, exitEqual, code)

	code, _, errOut = runArgs("diff", "--path", "missing", a, b)
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "path matches nothing")
}

func TestDiffInline(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "name: cat\n")
	b := writeFile(t, dir, "b.yaml", "name: cats\n")

	code, out, _ := runArgs("diff", "--inline", "--no-color", a, b)
	require.Equal(t, exitDiff, code)
	require.Equal(t, "Object [name] ~ cat{+s+}\n", out)
}

func TestDiffReferenceHandling(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	b := writeFile(t, dir, "b.yaml", twoReplicas)

	code, out, _ := runArgs("--reference-handling", "references", "diff", a, b)
	require.Equal(t, exitDiff, code)
	require.Equal(t, "Object [spec] x: Object y: Object\n", out)

	code, _, errOut := runArgs("--reference-handling", "sideways", "diff", a, b)
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "invalid reference handling")
}

func TestDiffConfig(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	b := writeFile(t, dir, "b.yaml", threeReplicas)
	cfg := writeFile(t, dir, "settings.toml", "reference_handling = \"throw\"\n")

	code, _, errOut := runArgs("--config", cfg, "diff", a, b)
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "Object[spec]")

	code, _, errOut = runArgs("--config", filepath.Join(dir, "absent.toml"), "diff", a, b)
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "absent.toml")
}

func TestDiffErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	bad := writeFile(t, dir, "bad.yaml", "name: [unclosed\n")

	code, _, errOut := runArgs("diff", a, bad)
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "bad.yaml")

	code, _, _ = runArgs("diff", a)
	require.Equal(t, exitError, code)

	code, _, _ = runArgs("diff", a, filepath.Join(dir, "missing.yaml"))
	require.Equal(t, exitError, code)
}

func TestSettingsCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "settings.yaml", strings.Join([]string{
		"reference_handling: structural-with-reference-loops",
		"ignore_types: [time.Location]",
		"ignore_members: [example.Person.Cache]",
		"",
	}, "\n"))

	code, out, errOut := runArgs("settings", cfg)
	require.Equal(t, exitEqual, code, errOut)
	require.Equal(t, strings.Join([]string{
		"reference handling: structural-with-reference-loops",
		"ignore type: time.Location",
		"ignore member: example.Person.Cache",
		"",
	}, "\n"), out)

	code, _, _ = runArgs("settings", filepath.Join(dir, "absent.yaml"))
	require.Equal(t, exitError, code)
}

func TestGlobalFlags(t *testing.T) {
	code, out, _ := runArgs("--version")
	require.Equal(t, exitEqual, code)
	require.Contains(t, out, "statetrack dev")

	code, _, errOut := runArgs("--log-level", "loud", "diff")
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "invalid log level")

	code, _, errOut = runArgs("frobnicate")
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "unknown command")

	code, _, errOut = runArgs()
	require.Equal(t, exitError, code)
	require.Contains(t, errOut, "Usage: statetrack")
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", twoReplicas)
	b := writeFile(t, dir, "b.yaml", threeReplicas)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"watch", a, b}, &stdout, &stderr)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Object [spec] [replicas] x: 2 y: 3")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(b, []byte(twoReplicas), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "no differences")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, exitEqual, code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
