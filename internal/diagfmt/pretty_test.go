package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"hlsched/internal/diag"
	"hlsched/internal/source"
)

func TestPrettyLayout(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("prog.yaml", []byte(progYAML))

	var buf bytes.Buffer
	Pretty(&buf, conflictBag(fileID), fs, PrettyOpts{Context: 1, PathMode: PathModeBasename, ShowNotes: true})
	want := strings.Join([]string{
		"prog.yaml:4:9: error QUO4001: main: value: v cannot implement f",
		" 3 |     body:",
		" 4 |       - let: v",
		"   |" + strings.Repeat(" ", 9) + "^~~",
		"  note: prog.yaml:2:11: in this function",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("Pretty output:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrettyWithoutLocation(t *testing.T) {
	bag := diag.NewBag(1)
	bag.Add(diag.New(diag.SevWarning, diag.DrvCacheRead, source.NoSpan, "cache read failed"))

	var buf bytes.Buffer
	Pretty(&buf, bag, source.NewFileSet(), PrettyOpts{})
	if got, want := buf.String(), "warning DRV5001: cache read failed\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrettyWideRunes(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("- let: 変数\n")
	fileID := fs.AddVirtual("wide.yaml", content)
	start := uint32(strings.Index(string(content), "変"))
	bag := diag.NewBag(1)
	bag.Add(diag.New(diag.SevError, diag.QuotConflict, source.Span{File: fileID, Start: start, End: start + 6}, "wide"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	lines := strings.Split(buf.String(), "\n")
	if len(lines) < 3 {
		t.Fatalf("output too short:\n%s", buf.String())
	}
	// two double-width runes take four columns
	if want := "   |" + strings.Repeat(" ", 8) + "^~~~"; lines[2] != want {
		t.Errorf("underline = %q, want %q", lines[2], want)
	}
}

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	long := fs.Add("/very/long/absolute/path/to/some/nested/directory/prog.yaml", []byte("x\n"), 0)
	short := fs.Add("/p/prog.yaml", []byte("x\n"), 0)

	tests := []struct {
		name string
		id   source.FileID
		mode PathMode
		base string
		want string
	}{
		{"auto long", long, PathModeAuto, "", "prog.yaml"},
		{"auto short", short, PathModeAuto, "", "/p/prog.yaml"},
		{"basename", short, PathModeBasename, "", "prog.yaml"},
		{"relative", long, PathModeRelative, "/very/long/absolute/path", "to/some/nested/directory/prog.yaml"},
		{"relative outside base", short, PathModeRelative, "/very", "/p/prog.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPath(fs.Get(tt.id), tt.mode, tt.base); got != tt.want {
				t.Errorf("formatPath = %q, want %q", got, tt.want)
			}
		})
	}
}
