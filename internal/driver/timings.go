package driver

import (
	"encoding/json"
	"fmt"

	"hlsched/internal/diag"
	"hlsched/internal/observ"
	"hlsched/internal/source"
)

// TimingPayload sums stage durations over every function of a run.
type TimingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
	Cached  int                  `json:"cached,omitempty"`
}

// Timings aggregates per stage, in pipeline order. Cached functions only
// count towards Cached.
func Timings(path string, results []*Result) TimingPayload {
	p := TimingPayload{Kind: "pipeline", Path: path}
	var sum observ.Report
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Cached {
			p.Cached++
			continue
		}
		sum.Add(r.Timing)
	}
	p.TotalMS = sum.TotalMS
	for _, st := range Stages {
		for _, ph := range sum.Phases {
			if ph.Name == st {
				p.Phases = append(p.Phases, ph)
			}
		}
	}
	return p
}

// AppendTimings adds p to bag as an info diagnostic whose note carries the
// JSON form. The bag grows when it is full.
func AppendTimings(bag *diag.Bag, p TimingPayload) {
	if bag == nil {
		return
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", p.Kind, p.TotalMS)
	if p.Path != "" {
		msg = fmt.Sprintf("%s, %s", msg, p.Path)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	entry := diag.New(diag.SevInfo, diag.DrvInfo, source.NoSpan, msg).WithNote(source.NoSpan, string(data))
	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
