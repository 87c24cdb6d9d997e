package custody

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Any sequence of bulk writes leaves at most one entry per date, holding the
// last value written for it.
func TestBulkUpsertOneEntryPerDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		entries := make([]Entry, n)
		last := map[string]int64{}
		for i := range entries {
			day := rapid.IntRange(1, 5).Draw(rt, "day")
			parent := rapid.SampledFrom([]int64{0, f.mario, f.alex, f.stranger}).Draw(rt, "parent")
			date := fmt.Sprintf("2027-01-%02d", day)
			entries[i] = Entry{Date: date, AssignedParentID: parent}

			resolved := parent
			if parent == 0 || parent == f.stranger {
				resolved = f.mario
			}
			last[date] = resolved
		}

		if _, err := f.mgr.BulkUpsert(ctx, f.mario, f.child, entries); err != nil {
			rt.Fatalf("bulk upsert: %v", err)
		}

		days, err := f.mgr.Get(ctx, f.mario, f.child, "2027-01")
		if err != nil {
			rt.Fatalf("get: %v", err)
		}
		seen := map[string]bool{}
		for _, d := range days {
			if seen[d.Date] {
				rt.Fatalf("duplicate entry for %s", d.Date)
			}
			seen[d.Date] = true
			if want, ok := last[d.Date]; ok && d.AssignedParentID != want {
				rt.Fatalf("%s assigned %d, want %d", d.Date, d.AssignedParentID, want)
			}
		}
	})
}

func TestPatternExpandCoversMonth(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		year := rapid.IntRange(2000, 2099).Draw(rt, "year")
		month := rapid.IntRange(1, 12).Draw(rt, "month")
		p := Pattern{Month: fmt.Sprintf("%04d-%02d", year, month), Week: [7]int64{1, 1, 1, 1, 1, 1, 1}}

		entries, err := p.Expand()
		if err != nil {
			rt.Fatalf("expand: %v", err)
		}
		if len(entries) < 28 || len(entries) > 31 {
			rt.Fatalf("entries = %d, want a whole month", len(entries))
		}
		for i := 1; i < len(entries); i++ {
			if entries[i].Date <= entries[i-1].Date {
				rt.Fatalf("dates out of order: %s then %s", entries[i-1].Date, entries[i].Date)
			}
		}
	})
}
