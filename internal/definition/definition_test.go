package definition

import (
	"context"
	"testing"

	"github.com/danmuck/domainkit/internal/config"
	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engine() *domain.Engine {
	cfg := config.DefaultEngine()
	cfg.Seed = 3
	return domain.NewEngine(cfg)
}

func TestLoadYAMLBuildsWorkingSymbol(t *testing.T) {
	testlog.Start(t)

	doc, err := Load("testdata/frame.yaml")
	require.NoError(t, err)
	sym, err := doc.Build()
	require.NoError(t, err)
	assert.Equal(t, "frame", sym.Name())
	require.Len(t, sym.Fields(), 4)

	e := engine()
	ctx := context.Background()
	mem := domain.NewMemory()
	for i := 0; i < 10; i++ {
		raw, err := sym.Specialize(ctx, e, mem, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x7e, 0x7e}, raw[:2])

		fields, err := sym.Abstract(ctx, e, raw, domain.NewMemory())
		require.NoError(t, err, "abstract %x", raw)
		assert.Equal(t, raw, fields.Bytes())

		body, _ := fields.Get("body")
		length, _ := fields.Get("length")
		n, err := length.Uint()
		require.NoError(t, err)
		assert.Equal(t, body.Len()/8, int(n))
	}
	// the persistent session id is held after the first message
	assert.True(t, mem.Has(VariableID("frame", "body", "session")))
}

func TestLoadTOML(t *testing.T) {
	testlog.Start(t)

	doc, err := Load("testdata/counter.toml")
	require.NoError(t, err)
	sym, err := doc.Build()
	require.NoError(t, err)

	e := engine()
	raw, err := sym.Specialize(context.Background(), e, domain.NewMemory(), nil)
	require.NoError(t, err)
	require.Len(t, raw, 33)
	assert.LessOrEqual(t, raw[0], byte(100))

	fields, err := sym.Abstract(context.Background(), e, raw, domain.NewMemory())
	require.NoError(t, err)
	seq, _ := fields.Get("seq")
	assert.Equal(t, raw[:1], seq.Bytes())
}

func TestCountedRepeatAndValueCopy(t *testing.T) {
	testlog.Start(t)

	doc, err := Load("testdata/records.yaml")
	require.NoError(t, err)
	sym, err := doc.Build()
	require.NoError(t, err)

	e := engine()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		raw, err := sym.Specialize(ctx, e, domain.NewMemory(), nil)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(raw), 2)
		assert.Equal(t, raw[0], raw[len(raw)-1], "echo copies count in %x", raw)

		items, at := 0, 1
		for at < len(raw)-1 {
			at += 1 + int(raw[at])
			items++
		}
		assert.Equal(t, len(raw)-1, at, "entries overrun in %x", raw)
		assert.Equal(t, int(raw[0]), items, "count in %x", raw)

		fields, err := sym.Abstract(ctx, e, raw, domain.NewMemory())
		require.NoError(t, err, "abstract %x", raw)
		assert.Equal(t, raw, fields.Bytes())
	}

	_, err = sym.Abstract(ctx, e, []byte{0x01, 0x02, 'h', 'i', 0x02}, domain.NewMemory())
	assert.ErrorIs(t, err, domain.ErrNoParse, "echo disagrees with count")
}

func TestIDsAreStableAcrossBuilds(t *testing.T) {
	testlog.Start(t)

	doc, err := Load("testdata/frame.yaml")
	require.NoError(t, err)
	a, err := doc.Build()
	require.NoError(t, err)
	b, err := doc.Build()
	require.NoError(t, err)

	for _, f := range a.Fields() {
		g, ok := b.Field(f.Name)
		require.True(t, ok)
		assert.Equal(t, f.Domain.ID(), g.Domain.ID(), f.Name)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown key":  "symbol: s\nfields:\n  - name: a\n    colour: red\n    domain: {kind: data, value: \"hex:00\"}\n",
		"bad kind":     "symbol: s\nfields:\n  - name: a\n    domain: {kind: widget}\n",
		"no fields":    "symbol: s\n",
		"bad svas":     "symbol: s\nfields:\n  - name: a\n    domain: {kind: data, svas: sticky, value: \"hex:00\"}\n",
		"nested kind":  "symbol: s\nfields:\n  - name: a\n    domain: {kind: agg, children: [{kind: nope}]}\n",
		"missing name": "symbol: s\nfields:\n  - domain: {kind: data, value: \"hex:00\"}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), FormatYAML)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
	_, err := Parse([]byte("symbol: s"), Format("json"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestBuildRejectsBadReferences(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown target": "symbol: s\nfields:\n  - name: n\n    domain: {kind: size, targets: [ghost]}\n",
		"duplicate name": "symbol: s\nfields:\n  - name: a\n    domain: {kind: data, value: \"hex:00\"}\n  - name: b\n    domain: {kind: data, name: a, value: \"hex:00\"}\n",
		"untyped data":   "symbol: s\nfields:\n  - name: a\n    domain: {kind: data}\n",
		"no prefix":      "symbol: s\nfields:\n  - name: a\n    domain: {kind: data, value: \"00\"}\n",
		"size type":      "symbol: s\nfields:\n  - name: a\n    domain: {kind: size, type: {kind: raw, size: 1}, targets: [a]}\n",
		"unknown count":  "symbol: s\nfields:\n  - name: r\n    domain: {kind: repeat, count: ghost, child: {kind: data, value: \"hex:00\"}}\n",
		"value targets":  "symbol: s\nfields:\n  - name: a\n    domain: {kind: data, value: \"hex:00\"}\n  - name: v\n    domain: {kind: value, targets: [a, a]}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse([]byte(src), FormatYAML)
			require.NoError(t, err)
			_, err = doc.Build()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseValue(t *testing.T) {
	testlog.Start(t)

	v, err := ParseValue("hex:de ad")
	require.NoError(t, err)
	assert.Equal(t, "dead", v.Hex())

	v, err = ParseValue("text:hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), v.Bytes())

	v, err = ParseValue("bin:1_01")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())

	_, err = ParseValue("oct:7")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseValue("hex:zz")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFormatOf(t *testing.T) {
	testlog.Start(t)

	for path, want := range map[string]Format{"a.yaml": FormatYAML, "a.YML": FormatYAML, "a.toml": FormatTOML} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatOf("a.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
