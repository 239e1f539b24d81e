package diag

import "swell/internal/source"

// Reporter is the minimal contract the compiler phases report through.
// Implementations: BagReporter (collects into a Bag), NopReporter.
type Reporter interface {
	Report(sev Severity, code Code, primary source.Span, msg string)
}

// BagReporter writes into a *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(sev Severity, code Code, primary source.Span, msg string) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg})
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Severity, Code, source.Span, string) {}
