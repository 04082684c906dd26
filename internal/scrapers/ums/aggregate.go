package ums

import (
	"context"
	"fmt"
	"strconv"
	"umsassist-backend/internal/components/telemetry"

	"golang.org/x/sync/errgroup"
)

const (
	report_aggregate_month = "aggregate.month"
)

// DefaultConcurrency is the number of months fetched at once.
const DefaultConcurrency = 4

// AllMonths are the months fetched for a whole year view.
var AllMonths = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

type subjectCount struct {
	held     int
	attended int
}

// Tally accumulates held/attended counters per subject. It is not safe for
// concurrent use, each worker keeps its own and they are merged afterwards.
type Tally struct {
	order  []string
	counts map[string]*subjectCount
}

func NewTally() *Tally {
	return &Tally{counts: map[string]*subjectCount{}}
}

func (t *Tally) Add(subject string, held, attended int) {
	count, ok := t.counts[subject]
	if !ok {
		count = &subjectCount{}
		t.counts[subject] = count
		t.order = append(t.order, subject)
	}
	count.held += held
	count.attended += attended
}

// AddTable adds every data row of a month's table.
func (t *Tally) AddTable(table Table) {
	heldIdx, attendedIdx := ColumnIndices(table.Headers)
	for _, row := range table.Rows {
		if len(row) < 3 {
			continue
		}
		subject := row[0]
		if isTotalRow(subject) {
			continue
		}
		held, ok := cellIndex(heldIdx, len(row))
		if !ok {
			continue
		}
		attended, ok := cellIndex(attendedIdx, len(row))
		if !ok {
			continue
		}
		t.Add(subject, parseCount(row[held]), parseCount(row[attended]))
	}
}

// cellIndex resolves a column index against one row, negative indices count
// from the end of the row the way the headerless fallback expects.
func cellIndex(idx int, rowLen int) (int, bool) {
	if idx < 0 {
		idx += rowLen
	}
	return idx, idx >= 0 && idx < rowLen
}

// Merge adds other's counters into t, subjects new to t are appended in
// other's order.
func (t *Tally) Merge(other *Tally) {
	for _, subject := range other.order {
		count := other.counts[subject]
		t.Add(subject, count.held, count.attended)
	}
}

// Rows returns [subject, held, attended, percent] in order of first appearance.
func (t *Tally) Rows() [][]string {
	rows := make([][]string, 0, len(t.order))
	for _, subject := range t.order {
		count := t.counts[subject]
		rows = append(rows, []string{
			subject,
			strconv.Itoa(count.held),
			strconv.Itoa(count.attended),
			FormatPercent(count.held, count.attended),
		})
	}
	return rows
}

// FormatPercent formats attended/held as a percentage with two decimals,
// "0.00" when nothing was held.
func FormatPercent(held, attended int) string {
	if held <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(attended)/float64(held)*100)
}

// parseCount parses a cell that should only contain digits, anything else counts as 0.
func parseCount(cell string) int {
	if cell == "" {
		return 0
	}
	for _, c := range cell {
		if c < '0' || c > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0
	}
	return n
}

// MonthFetcher fetches the attendance table of a single month.
type MonthFetcher func(ctx context.Context, month int) (Table, error)

// AggregateMonths fetches every month with at most `concurrency` requests in
// flight and sums the per subject counters.
//
// A month that fails is reported and left out, the other months still
// count. Failed months are returned in ascending order.
func AggregateMonths(
	ctx context.Context,
	months []int,
	fetch MonthFetcher,
	concurrency int,
	tel telemetry.API,
) Aggregate {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	partials := make([]*Tally, len(months))
	failed := make([]bool, len(months))

	var group errgroup.Group
	group.SetLimit(concurrency)
	for i, month := range months {
		i, month := i, month
		group.Go(func() error {
			table, err := fetch(ctx, month)
			if err != nil {
				tel.ReportWarning(
					report_aggregate_month,
					fmt.Errorf("month %d: %w", month, err),
				)
				failed[i] = true
				return nil
			}
			tally := NewTally()
			tally.AddTable(table)
			partials[i] = tally
			return nil
		})
	}
	// workers never return errors, a failed month is recorded in its slot
	_ = group.Wait()

	total := NewTally()
	failedMonths := []int{}
	for i, month := range months {
		if failed[i] {
			failedMonths = append(failedMonths, month)
			continue
		}
		total.Merge(partials[i])
	}

	return Aggregate{
		Rows:         total.Rows(),
		FailedMonths: failedMonths,
	}
}
