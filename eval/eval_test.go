package eval

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, opts ...Option) *Context {
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func TestNamespacePersistsAcrossExecutes(t *testing.T) {
	c := newContext(t)

	require.Nil(t, c.Execute("var counter = 1;"))
	require.Nil(t, c.Execute("counter = counter + 41;"))

	v, err := c.Evaluate("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestEvaluateReturnsValues(t *testing.T) {
	c := newContext(t)
	require.Nil(t, c.Execute(`var config = { title: "loss rate", bins: [1, 2, 3] };`))

	cases := []struct {
		name string
		expr string
		want any
	}{
		{"number", "1 + 2", int64(3)},
		{"string", `"a" + "b"`, "ab"},
		{"bool", "2 > 1", true},
		{"null", "null", nil},
		{"undefined", "undefined", nil},
		{"list", "[1, 2].concat([3])", []any{int64(1), int64(2), int64(3)}},
		{"mapping", "config.bins", []any{int64(1), int64(2), int64(3)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := c.Evaluate(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestEvaluateFaultIsAnError(t *testing.T) {
	c := newContext(t)

	_, err := c.Evaluate("noSuchName")
	require.Error(t, err)

	// the namespace survives a failed evaluation
	require.Nil(t, c.Execute("var x = 5;"))
	v, err := c.Evaluate("x")
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
}

func TestChartScriptErrorIsDomain(t *testing.T) {
	c := newContext(t)

	serr := c.Execute(`throw new ChartScriptError("bad filter");`)
	require.NotNil(t, serr)
	assert.True(t, serr.Domain)
	assert.Equal(t, "bad filter", serr.Message)
	assert.Empty(t, serr.Trace)
}

func TestUncaughtFaultHasTrace(t *testing.T) {
	c := newContext(t)

	serr := c.Execute("callThatDoesNotExist();")
	require.NotNil(t, serr)
	assert.False(t, serr.Domain)
	assert.NotEmpty(t, serr.Message)
	assert.NotEmpty(t, serr.Trace)
}

func TestSyntaxErrorIsFault(t *testing.T) {
	c := newContext(t)

	serr := c.Execute("var = ;")
	require.NotNil(t, serr)
	assert.False(t, serr.Domain)
	assert.NotEmpty(t, serr.Message)
}

func TestPrintBuiltin(t *testing.T) {
	var out bytes.Buffer
	c := newContext(t, WithStdout(&out))

	require.Nil(t, c.Execute(`print("hello", 42);`))
	assert.Equal(t, "hello 42\n", out.String())
}

func TestExitBuiltin(t *testing.T) {
	exitCode := -1
	c := newContext(t, WithExitFunc(func(code int) { exitCode = code }))

	require.Nil(t, c.Execute("exit(3);"))
	assert.Equal(t, 3, exitCode)

	require.Nil(t, c.Execute("exit();"))
	assert.Equal(t, 0, exitCode)
}

func TestDefineOverwrites(t *testing.T) {
	c := newContext(t)

	require.NoError(t, c.Define("x", []any{int64(1), int64(2)}))
	require.NoError(t, c.Define("x", map[string]any{"a": int64(1)}))

	v, err := c.Evaluate("x.a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}
