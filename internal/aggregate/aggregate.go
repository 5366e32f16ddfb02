// Package aggregate turns flat transaction lists into chart and summary
// structures.
//
// Every function is pure: inputs are never modified and repeated calls on the
// same input return identical results, which the dashboard cache relies on.
// Malformed records are degraded (zero amount, ignored type) rather than
// reported as errors.
package aggregate

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

const (
	// DefaultWindow is the number of trailing months in a monthly series.
	DefaultWindow = 6
	// DefaultTopLimit is the number of categories returned by TopCategories.
	DefaultTopLimit = 5
)

// Palette holds the chart colours. The k-th aggregate of a result gets
// Palette[k % len(Palette)]; colours follow position, not content.
var Palette = []string{
	"#4F46E5", // indigo
	"#10B981", // emerald
	"#F59E0B", // amber
	"#EF4444", // red
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#14B8A6", // teal
	"#F97316", // orange
	"#84CC16", // lime
}

// ColorAt returns the palette colour for position k.
func ColorAt(k int) string {
	return Palette[k%len(Palette)]
}

// MonthlySeries buckets transactions into the trailing window of calendar
// months ending at the current month.
func MonthlySeries(txs []core.Transaction, window int) []core.MonthlyBucket {
	return MonthlySeriesAt(txs, window, time.Now())
}

// MonthlySeriesAt is MonthlySeries anchored at now. The result has exactly
// window buckets ordered oldest to newest; transactions dated outside the
// window, or without a parseable date, are dropped.
func MonthlySeriesAt(txs []core.Transaction, window int, now time.Time) []core.MonthlyBucket {
	if window <= 0 {
		window = DefaultWindow
	}

	// Keys are built newest first and reversed once accumulation is done.
	buckets := make([]core.MonthlyBucket, window)
	index := make(map[string]int, window)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := range buckets {
		month := first.AddDate(0, -i, 0)
		key := core.MonthKeyOf(month)
		buckets[i] = core.MonthlyBucket{
			Key:     key,
			Label:   month.Format("Jan 2006"),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
		index[key] = i
	}

	for _, tx := range txs {
		key, ok := tx.MonthKey()
		if !ok {
			continue
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Income:
			buckets[i].Income = buckets[i].Income.Add(tx.Amount.Decimal())
		case core.Expense:
			buckets[i].Expense = buckets[i].Expense.Add(tx.Amount.Decimal())
		}
	}

	for i := range buckets {
		buckets[i].Balance = buckets[i].Income.Sub(buckets[i].Expense)
	}
	slices.Reverse(buckets)
	return buckets
}

// group accumulates per-category totals in first-seen order.
type group struct {
	name  string
	count int
	total decimal.Decimal
}

func groupByCategory(txs []core.Transaction, typ core.TransactionType) []group {
	var groups []group
	index := make(map[string]int)
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		name := tx.CategoryLabel()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, group{name: name, total: decimal.Zero})
		}
		groups[i].count++
		groups[i].total = groups[i].total.Add(tx.Amount.Decimal())
	}
	// Stable sort keeps first-seen order for equal totals.
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].total.GreaterThan(groups[b].total)
	})
	return groups
}

// CategoryBreakdown sums transactions of the given type per category name,
// sorted by value descending. An empty type means expenses.
func CategoryBreakdown(txs []core.Transaction, typ core.TransactionType) []core.CategoryAggregate {
	if typ == "" {
		typ = core.Expense
	}
	groups := groupByCategory(txs, typ)
	out := make([]core.CategoryAggregate, 0, len(groups))
	for k, g := range groups {
		out = append(out, core.CategoryAggregate{
			CategoryName: g.name,
			TotalValue:   g.total,
			Color:        ColorAt(k),
		})
	}
	return out
}

// TopCategories ranks expense categories by total amount and keeps the first
// limit entries. A non-positive limit means DefaultTopLimit.
func TopCategories(txs []core.Transaction, limit int) []core.TopCategoryAggregate {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	groups := groupByCategory(txs, core.Expense)
	if len(groups) > limit {
		groups = groups[:limit]
	}
	out := make([]core.TopCategoryAggregate, 0, len(groups))
	for k, g := range groups {
		out = append(out, core.TopCategoryAggregate{
			CategoryName:     g.name,
			TransactionCount: g.count,
			TotalAmount:      g.total,
			Color:            ColorAt(k),
		})
	}
	return out
}

// Summarize totals income and expense over every transaction, regardless of date.
func Summarize(txs []core.Transaction) core.Summary {
	s := core.Summary{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount.Decimal())
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount.Decimal())
		}
	}
	return s
}

// JoinCategories returns a copy of txs with CategoryName resolved from cats.
// Records whose category id is unknown keep whatever name they carried, so an
// unjoined record still labels as Uncategorized.
func JoinCategories(txs []core.Transaction, cats []core.Category) []core.Transaction {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		if name, ok := names[tx.CategoryID]; ok {
			tx.CategoryName = name
		}
		out[i] = tx
	}
	return out
}

// Options controls the shape of a Snapshot.
type Options struct {
	Window   int
	TopLimit int
}

// Build computes the full dashboard snapshot for a user's transactions.
func Build(userID string, txs []core.Transaction, cats []core.Category, opts Options, now time.Time) core.Snapshot {
	joined := JoinCategories(txs, cats)
	return core.Snapshot{
		UserID:           userID,
		Monthly:          MonthlySeriesAt(joined, opts.Window, now),
		ExpenseBreakdown: CategoryBreakdown(joined, core.Expense),
		IncomeBreakdown:  CategoryBreakdown(joined, core.Income),
		TopCategories:    TopCategories(joined, opts.TopLimit),
		Summary:          Summarize(joined),
		TransactionCount: len(joined),
		ComputedAt:       now,
	}
}

// Empty returns the snapshot shown when no data is available at all.
func Empty(userID string, opts Options, now time.Time) core.Snapshot {
	return Build(userID, nil, nil, opts, now)
}
