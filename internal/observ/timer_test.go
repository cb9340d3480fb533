package observ

import (
	"strings"
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(time.Millisecond)

	a := tm.Begin("cfg")
	tm.End(a, "")
	b := tm.Begin("ssa")
	tm.End(b, "3 phis")
	tm.End(7, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(r.Phases))
	}
	if r.Phases[0].DurationMS != 1 || r.Phases[1].DurationMS != 1 {
		t.Errorf("durations = %v, %v", r.Phases[0].DurationMS, r.Phases[1].DurationMS)
	}
	if r.TotalMS != 2 {
		t.Errorf("total = %v, want 2", r.TotalMS)
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "(3 phis)") || !strings.Contains(sum, "total") {
		t.Errorf("summary:\n%s", sum)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Errorf("report = %+v", r)
	}
}

func TestReportAdd(t *testing.T) {
	var total Report
	total.Add(Report{TotalMS: 3, Phases: []PhaseReport{{Name: "cfg", DurationMS: 1}, {Name: "ssa", DurationMS: 2}}})
	total.Add(Report{TotalMS: 4, Phases: []PhaseReport{{Name: "ssa", DurationMS: 1}, {Name: "value", DurationMS: 3}}})

	want := []PhaseReport{{Name: "cfg", DurationMS: 1}, {Name: "ssa", DurationMS: 3}, {Name: "value", DurationMS: 3}}
	if total.TotalMS != 7 || len(total.Phases) != len(want) {
		t.Fatalf("total = %+v", total)
	}
	for i, p := range want {
		if total.Phases[i] != p {
			t.Errorf("phase %d = %+v, want %+v", i, total.Phases[i], p)
		}
	}
}
