package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rlm-runtime/rlm/internal/rlm/document"
	"github.com/rlm-runtime/rlm/internal/rlm/sandbox"
	"github.com/rlm-runtime/rlm/internal/rlm/store"
)

func newSandbox(t *testing.T, text string, cfg sandbox.Config) *sandbox.Sandbox {
	t.Helper()
	db, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	doc := document.New(db)
	_, err = doc.Load(context.Background(), text)
	require.NoError(t, err)

	return sandbox.New(doc, cfg)
}

func TestRunReturnsCompletionValue(t *testing.T) {
	s := newSandbox(t, "alpha\nbeta", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `1 + 2`)
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Value)
}

func TestRunExposesContextAndLinesArray(t *testing.T) {
	s := newSandbox(t, "alpha\nbeta", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `__linesArray.length`)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Value)
}

func TestRunCapturesConsoleLog(t *testing.T) {
	s := newSandbox(t, "alpha", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `console.log("hello", 42); 0`)
	require.NoError(t, err)
	require.Equal(t, []string{"hello 42"}, result.Logs)
}

func TestRunPersistsMemoryAcrossCalls(t *testing.T) {
	s := newSandbox(t, "alpha", sandbox.DefaultConfig())
	_, err := s.Run(context.Background(), `memory.push("first"); 0`)
	require.NoError(t, err)

	result, err := s.Run(context.Background(), `memory.length`)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Value)
}

func TestRunGrepFindsMatches(t *testing.T) {
	s := newSandbox(t, "ERROR disk full\nINFO ok\nERROR timeout", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `grep("ERROR").length`)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Value)
}

func TestRunLocateLineFindsLineNumber(t *testing.T) {
	s := newSandbox(t, "one\ntwo\nthree", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `locate_line("two")`)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Value)
}

func TestRunSynthesizeRegexFindsPattern(t *testing.T) {
	s := newSandbox(t, "Total: $100", sandbox.DefaultConfig())
	result, err := s.Run(context.Background(), `
		var r = synthesize_regex([{input: "Total: $100", output: "100"}]);
		r.found
	`)
	require.NoError(t, err)
	require.Equal(t, true, result.Value)
}

func TestRunRejectsTimersAndHostAccess(t *testing.T) {
	s := newSandbox(t, "alpha", sandbox.DefaultConfig())
	_, err := s.Run(context.Background(), `setTimeout(function(){}, 10)`)
	require.Error(t, err)
}

func TestValidateRejectsDisallowedMethodCall(t *testing.T) {
	err := sandbox.Validate(`line.match(/foo/)`)
	require.Error(t, err)
}

func TestValidateAllowsPropertyAccessOnHitObjects(t *testing.T) {
	err := sandbox.Validate(`var x = hit.match; grep("foo")`)
	require.NoError(t, err)
}

func TestValidateRejectsRegexLiteral(t *testing.T) {
	err := sandbox.Validate(`var re = /[0-9]+/; 0`)
	require.Error(t, err)
}

func TestValidateRejectsNewRegExp(t *testing.T) {
	err := sandbox.Validate(`new RegExp("[0-9]+")`)
	require.Error(t, err)
}

func TestRunTimesOutOnInfiniteLoop(t *testing.T) {
	s := newSandbox(t, "alpha", sandbox.Config{TimeoutSeconds: 1, MemoryLimitMB: 128, MaxSubCalls: 50})
	_, err := s.Run(context.Background(), `while (true) {}`)
	require.Error(t, err)
}

func TestRunEnforcesSubCallLimit(t *testing.T) {
	s := newSandbox(t, "alpha\nbeta", sandbox.Config{TimeoutSeconds: 10, MemoryLimitMB: 128, MaxSubCalls: 2})
	_, err := s.Run(context.Background(), `
		for (var i = 0; i < 5; i++) { grep("a"); }
		0
	`)
	require.Error(t, err)
}
