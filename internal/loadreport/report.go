// Package loadreport summarizes a counter-load run.
package loadreport

import (
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// Report compares the stored count before and after a run with the hits that succeeded.
type Report struct {
	Before int64
	After  int64
	Hits   int64
}

func New(before, after, hits int64) Report {
	return Report{Before: before, After: after, Hits: hits}
}

// Lost is the number of successful hits whose increment is missing from the store.
// It is negative when something else incremented the counter during the run.
func (r Report) Lost() int64 {
	return r.Before + r.Hits - r.After
}

func (r Report) Verdict() string {
	return lo.Ternary(r.Lost() > 0, "lost updates detected", "no lost update")
}

// Fields returns the counts formatted for log output.
func (r Report) Fields() (before, after, hits, lost string) {
	return humanize.Comma(r.Before), humanize.Comma(r.After), humanize.Comma(r.Hits), humanize.Comma(r.Lost())
}
