package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hlsched/internal/config"
)

const progSrc = `externs: [foo]
specs:
  - name: val
    sort: value
    inputs: [{name: a, type: i64}, {name: b, type: i64}]
    outputs: [f]
    nodes:
      - f: call foo a b
funcs:
  - name: main
    specs: {value: val}
    params: [{name: x, type: i64}, {name: y, type: i64}]
    results: [{type: i64}]
    body:
      - let: v
        expr: foo(x, y)
      - return: v
`

const brokenSrc = `funcs:
  - name: main
    body:
      - jump: nowhere
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestCheckClean(t *testing.T) {
	path := writeProgram(t, progSrc)
	out, _, err := execute(t, "check", "--color", "off", path)
	require.NoError(t, err)
	require.Equal(t, path+": 1 functions ok\n", out)
}

func TestCheckReportsLoadErrors(t *testing.T) {
	path := writeProgram(t, brokenSrc)
	out, _, err := execute(t, "check", "--color", "off", path)
	require.ErrorIs(t, err, errFailed)
	require.Contains(t, out, "error LOD1002")
}

func TestCheckJSON(t *testing.T) {
	path := writeProgram(t, brokenSrc)
	out, _, err := execute(t, "check", "--format", "json", path)
	require.ErrorIs(t, err, errFailed)

	var doc struct {
		Count       int `json:"count"`
		Diagnostics []struct {
			Code string `json:"code"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Equal(t, 1, doc.Count)
	require.Equal(t, "LOD1002", doc.Diagnostics[0].Code)
}

func TestCheckMissingFile(t *testing.T) {
	_, _, err := execute(t, "check", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.NotErrorIs(t, err, errFailed)
}

func TestTagsTable(t *testing.T) {
	path := writeProgram(t, progSrc)
	out, _, err := execute(t, "tags", "--color", "off", path)
	require.NoError(t, err)
	require.Equal(t, "func main\n"+
		"  param   x      input(a)  ?  ?\n"+
		"  param   y      input(b)  ?  ?\n"+
		"  result  _out0  node(f)   ?  ?\n", out)
}

func TestTagsSkipValue(t *testing.T) {
	path := writeProgram(t, progSrc)
	out, _, err := execute(t, "tags", "--color", "off", "--skip", "value", path)
	require.NoError(t, err)
	require.Contains(t, out, "  param   x      ?  ?  ?\n")
}

func TestCFGDump(t *testing.T) {
	path := writeProgram(t, progSrc)
	out, _, err := execute(t, "cfg", "--color", "off", "--func", "main", path)
	require.NoError(t, err)
	require.Contains(t, out, "func main:\n")
	require.Contains(t, out, "= foo(")
}

func TestSettingsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(`
[pipeline]
jobs = 3
cache = true

[deduce]
spatial = false
timeline_merge = "warn"
`), 0o600))
	path := filepath.Join(dir, "prog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(progSrc), 0o600))

	root := newRootCmd()
	check, _, err := root.Find([]string{"check"})
	require.NoError(t, err)
	require.NoError(t, check.ParseFlags([]string{"--jobs", "5", "--no-cache", "--skip", "timeline"}))

	s, err := loadSettings(check, path)
	require.NoError(t, err)
	require.Equal(t, 5, s.opts.Jobs)
	require.Nil(t, s.opts.Cache)
	require.Equal(t, [3]bool{false, true, true}, s.opts.Skip)
	require.Equal(t, "warn", s.cfg.Deduce.TimelineMerge)
	require.Equal(t, progressOff, s.progress)
}

func TestReadProgressMode(t *testing.T) {
	for in, want := range map[string]progressMode{"": progressOff, "AUTO": progressAuto, " log ": progressLog, "view": progressView} {
		got, err := readProgressMode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := readProgressMode("on")
	require.Error(t, err)
}

func TestProgressModeResolve(t *testing.T) {
	require.Equal(t, progressView, progressAuto.resolve("pretty", true))
	require.Equal(t, progressOff, progressAuto.resolve("pretty", false))
	require.Equal(t, progressLog, progressView.resolve("json", false))
	require.Equal(t, progressLog, progressAuto.resolve("json", true))
	require.Equal(t, progressLog, progressLog.resolve("pretty", true))
}

func TestCheckProgressLog(t *testing.T) {
	path := writeProgram(t, progSrc)
	_, errOut, err := execute(t, "check", "--color", "off", "--no-cache", "--progress", "log", path)
	require.NoError(t, err)
	require.Contains(t, errOut, "main: ")
	require.Contains(t, errOut, " done in ")
}
