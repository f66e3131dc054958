package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/domainkit/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterDef = `
symbol: counter
fields:
  - name: magic
    domain: {kind: data, value: "hex:cafe"}
  - name: seq
    domain: {kind: data, type: {kind: integer, size: 8}}
  - name: len
    domain: {kind: size, targets: [body]}
  - name: body
    domain: {kind: data, svas: volatile, type: {kind: raw, min: 1, max: 4}}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateThenParse(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	def := writeFile(t, dir, "counter.yaml", counterDef)

	out, err := run(t, "generate", "--def", def, "--count", "3", "--preset", "body=hex:0102")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "cafe"), l)
		assert.True(t, strings.HasSuffix(l, "020102"), l)
	}

	out, err = run(t, "parse", "--def", def, lines[0])
	require.NoError(t, err)
	assert.Contains(t, out, "magic=cafe")
	assert.Contains(t, out, "len=02")
	assert.Contains(t, out, "body=0102")
}

func TestParseRejectsForeignMessage(t *testing.T) {
	testlog.Start(t)

	def := writeFile(t, t.TempDir(), "counter.yaml", counterDef)
	_, err := run(t, "parse", "--def", def, "beef0001aa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 0")

	_, err = run(t, "parse", "--def", def, "zz")
	require.Error(t, err)
}

func TestSessionMemoryIsPersisted(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	def := writeFile(t, dir, "counter.yaml", counterDef)
	store := filepath.Join(dir, "store")

	_, err := run(t, "parse", "--def", def, "--store", store, "--session", "s1", "cafe07020102")
	require.NoError(t, err)

	out, err := run(t, "memory", "show", "--store", store, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "session s1: 1 entries")
	assert.Contains(t, out, " 8 bits 07")

	out, err = run(t, "memory", "sessions", "--store", store)
	require.NoError(t, err)
	assert.Equal(t, "s1\n", out)

	_, err = run(t, "memory", "clear", "--store", store, "--session", "s1")
	require.NoError(t, err)
	out, err = run(t, "memory", "show", "--store", store, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "0 entries")
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	def := writeFile(t, dir, "counter.yaml", counterDef)
	cfg := writeFile(t, dir, "domainctl.toml", "definition = \""+filepath.ToSlash(def)+"\"\n\n[engine]\nseed = 42\nretry_bound = 10\nmax_repeat = 1000\nunbounded_span = 32\n")
	eng := writeFile(t, dir, "engine.toml", "seed = 42\n")

	a, err := run(t, "generate", "--config", cfg, "--engine", eng)
	require.NoError(t, err)
	b, err := run(t, "generate", "--config", cfg, "--engine", eng)
	require.NoError(t, err)
	assert.Equal(t, a, b, "a fixed seed must reproduce the message")

	_, err = run(t, "generate", "--engine", writeFile(t, dir, "bad.toml", "colour = 1\n"), "--def", def)
	require.Error(t, err)
}

func TestMissingInputsAreReported(t *testing.T) {
	testlog.Start(t)

	_, err := run(t, "generate")
	require.ErrorContains(t, err, "no definition")
	_, err = run(t, "memory", "show")
	require.ErrorContains(t, err, "no store")
	_, err = run(t, "generate", "--def", "x.yaml", "--preset", "novalue")
	require.Error(t, err)
}
