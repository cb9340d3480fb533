package diag_test

import (
	"testing"

	"hlsched/internal/diag"
	"hlsched/internal/source"
)

func TestBagLimitAndSort(t *testing.T) {
	bag := diag.NewBag(3)
	r := &diag.BagReporter{Bag: bag}

	diag.ReportWarning(r, diag.QuotUndetermined, source.Span{Start: 10, End: 12}, "undetermined").Emit()
	diag.ReportError(r, diag.QuotConflict, source.Span{Start: 10, End: 12}, "conflict").
		WithNote(source.Span{Start: 1, End: 2}, "first constraint here").
		Emit()
	diag.ReportError(r, diag.CFGInvalid, source.Span{Start: 2, End: 3}, "bad cfg").Emit()
	diag.ReportError(r, diag.CFGInvalid, source.Span{Start: 0, End: 1}, "dropped").Emit()

	if bag.Len() != 3 {
		t.Fatalf("expected bag to stop at 3 items, got %d", bag.Len())
	}
	if !bag.HasErrors() {
		t.Fatal("expected errors")
	}
	bag.Sort()
	items := bag.Items()
	if items[0].Code != diag.CFGInvalid {
		t.Errorf("expected earliest span first, got %s", items[0].Code.ID())
	}
	if items[1].Severity != diag.SevError || items[2].Severity != diag.SevWarning {
		t.Errorf("expected error before warning on equal spans, got %v then %v", items[1].Severity, items[2].Severity)
	}
	if len(items[1].Notes) != 1 {
		t.Errorf("expected note to be kept")
	}
}

func TestBuilderEmitsOnce(t *testing.T) {
	bag := diag.NewBag(10)
	b := diag.ReportError(&diag.BagReporter{Bag: bag}, diag.QuotInvariant, source.Span{}, "boom")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Errorf("expected single emission, got %d", bag.Len())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.NewDedupReporter(&diag.BagReporter{Bag: bag})
	for range 3 {
		r.Report(diag.QuotUndetermined, diag.SevWarning, source.Span{Start: 4, End: 5}, "x", nil)
	}
	r.Report(diag.QuotUndetermined, diag.SevWarning, source.Span{Start: 4, End: 5}, "y", nil)
	if bag.Len() != 2 {
		t.Errorf("expected 2 unique diagnostics, got %d", bag.Len())
	}
}

func TestCodeIDs(t *testing.T) {
	tests := map[diag.Code]string{
		diag.LoadInvalidYAML:   "LOD1001",
		diag.FlatEmptySeqBlock: "FLT2001",
		diag.CFGInvalid:        "CFG3001",
		diag.QuotConflict:      "QUO4001",
		diag.DrvCacheRead:      "DRV5001",
		diag.UnknownCode:       "E0000",
	}
	for code, want := range tests {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %s, want %s", code, got, want)
		}
	}
}

func TestSeverityFails(t *testing.T) {
	bag := diag.NewBag(4)
	bag.Add(diag.New(diag.SevInfo, diag.DrvInfo, source.NoSpan, "timings"))
	bag.Add(diag.New(diag.SevWarning, diag.QuotUndetermined, source.NoSpan, "undetermined"))
	if bag.HasErrors() {
		t.Fatal("info and warnings must not fail the run")
	}
	for sev, want := range map[diag.Severity]string{diag.SevInfo: "info", diag.SevWarning: "warning", diag.SevError: "error", 7: "severity(7)"} {
		if got := sev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", sev, got, want)
		}
	}
	if !diag.SevError.Fails() || diag.SevWarning.Fails() {
		t.Error("only errors fail")
	}
}
