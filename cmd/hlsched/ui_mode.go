package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"hlsched/internal/driver"
)

// progressMode says how stage progress is shown while functions compile.
type progressMode string

const (
	progressOff  progressMode = "off"
	progressView progressMode = "view" // per-function view on stdout
	progressLog  progressMode = "log"  // one stderr line per finished stage
	progressAuto progressMode = "auto" // view on a terminal, off otherwise
)

func readProgressMode(value string) (progressMode, error) {
	switch m := progressMode(strings.TrimSpace(strings.ToLower(value))); m {
	case "":
		return progressOff, nil
	case progressOff, progressView, progressLog, progressAuto:
		return m, nil
	default:
		return "", fmt.Errorf("invalid --progress value %q (expected auto|view|log|off)", value)
	}
}

// resolve settles auto against the terminal. The view owns stdout, so any
// format other than pretty falls back to log lines.
func (m progressMode) resolve(format string, tty bool) progressMode {
	if m == progressAuto {
		m = progressOff
		if tty {
			m = progressView
		}
	}
	if m == progressView && format != "pretty" {
		return progressLog
	}
	return m
}

// stageLogger writes a line per finished, failed or cached function stage.
// Functions run in parallel, so writes are serialized.
func stageLogger(w io.Writer) driver.Observer {
	var mu sync.Mutex
	return func(ev driver.StageEvent) {
		var line string
		switch ev.Status {
		case driver.StageEnd:
			line = fmt.Sprintf("%s: %s done in %s", ev.Func, ev.Stage, ev.Elapsed)
		case driver.StageFailed:
			line = fmt.Sprintf("%s: %s failed after %s", ev.Func, ev.Stage, ev.Elapsed)
		case driver.StageCached:
			line = ev.Func + ": cached"
		default:
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}
}
