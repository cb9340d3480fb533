// Package diag defines the diagnostic model shared by every hlsched phase.
//
// A Diagnostic carries a Severity, a numeric Code grouped by phase
// (1xxx loading, 2xxx flattening, 3xxx control flow, 4xxx quotient
// deduction, 5xxx driver), a short message, the primary source.Span and
// optional notes pointing at related spans.
//
// Phases emit through a Reporter, usually via ReportError/ReportWarning and
// the ReportBuilder chain, so they stay independent of storage. BagReporter
// collects into a Bag; DedupReporter filters repeats. Rendering lives in
// internal/diagfmt.
package diag
