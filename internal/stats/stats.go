// Package stats derives period summaries from a snapshot of expenses. The
// package functions are pure; Engine adds the selected period and snapshot
// for callers that hold state.
package stats

import (
	"sort"
	"time"

	"github.com/jinzhu/now"

	"ledger/internal/core"
)

// OtherCategory collects expenses without a category.
const OtherCategory = "Other"

type (
	CategoryStat struct {
		Name       string  `json:"name"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
		Count      int     `json:"count"`
	}

	// Point is one chart bucket.
	Point struct {
		Time   time.Time `json:"time"`
		Amount float64   `json:"amount"`
	}

	Summary struct {
		Period        Period         `json:"period"`
		From          time.Time      `json:"from"`
		To            time.Time      `json:"to"`
		Count         int            `json:"count"`
		Total         float64        `json:"total"`
		AveragePerDay float64        `json:"average_per_day"`
		Categories    []CategoryStat `json:"categories"`
		TopCategory   *CategoryStat  `json:"top_category"`
		Points        []Point        `json:"points"`
		Labels        []string       `json:"labels"`
		LinePath      string         `json:"line_path"`
		AreaPath      string         `json:"area_path"`
	}
)

// Filter keeps the expenses whose effective date lies in the window of p
// ending at t, bounds included. Expenses without a usable date are dropped.
func Filter(expenses []core.Expense, p Period, t time.Time) []core.Expense {
	from, to := Window(p, t)
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		d, ok := e.EffectiveDate()
		if !ok || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Total sums the monthly amounts.
func Total(expenses []core.Expense) float64 {
	var sum float64
	for _, e := range expenses {
		sum += e.MonthlyAmount()
	}
	return sum
}

// AveragePerDay divides the total of the already filtered expenses by the
// calendar length of p at t. It is 0 when nothing was spent.
func AveragePerDay(filtered []core.Expense, p Period, t time.Time) float64 {
	if len(filtered) == 0 {
		return 0
	}
	return Total(filtered) / float64(DaysInPeriod(p, t))
}

// ByCategory groups by category label, largest first; equal amounts keep
// the order in which the categories were first seen. It returns an empty
// list when the total is 0.
func ByCategory(filtered []core.Expense) []CategoryStat {
	var (
		order []string
		byKey = map[string]*CategoryStat{}
		total float64
	)
	for _, e := range filtered {
		name := e.Category
		if name == "" {
			name = OtherCategory
		}
		cs, ok := byKey[name]
		if !ok {
			cs = &CategoryStat{Name: name}
			byKey[name] = cs
			order = append(order, name)
		}
		amount := e.MonthlyAmount()
		cs.Amount += amount
		cs.Count++
		total += amount
	}
	if total == 0 {
		return []CategoryStat{}
	}

	out := make([]CategoryStat, 0, len(order))
	for _, name := range order {
		cs := *byKey[name]
		cs.Percentage = cs.Amount / total * 100
		out = append(out, cs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// Top returns the first group, nil when there is none.
func Top(stats []CategoryStat) *CategoryStat {
	if len(stats) == 0 {
		return nil
	}
	top := stats[0]
	return &top
}

// Buckets returns the chart points for p at t, oldest first: 7 days for a
// week, 5 weekly anchors for a month, 6 bimonthly month starts for a year. The
// count never depends on the expenses. Dates are compared in t's location.
func Buckets(filtered []core.Expense, p Period, t time.Time) []Point {
	loc := t.Location()
	today := now.With(t).BeginningOfDay()

	day := func(e core.Expense) (time.Time, bool) {
		d, ok := e.EffectiveDate()
		if !ok {
			return time.Time{}, false
		}
		return now.With(d.In(loc)).BeginningOfDay(), true
	}
	sum := func(match func(core.Expense) bool) float64 {
		var total float64
		for _, e := range filtered {
			if match(e) {
				total += e.MonthlyAmount()
			}
		}
		return total
	}

	switch p {
	case PeriodWeek:
		points := make([]Point, 0, 7)
		for i := 6; i >= 0; i-- {
			anchor := today.AddDate(0, 0, -i)
			points = append(points, Point{Time: anchor, Amount: sum(func(e core.Expense) bool {
				d, ok := day(e)
				return ok && d.Equal(anchor)
			})})
		}
		return points

	case PeriodYear:
		points := make([]Point, 0, 6)
		for i := 5; i >= 0; i-- {
			anchor := yearAnchor(t, i)
			points = append(points, Point{Time: anchor, Amount: sum(func(e core.Expense) bool {
				d, ok := e.EffectiveDate()
				if !ok {
					return false
				}
				d = d.In(loc)
				return d.Year() == anchor.Year() && d.Month() == anchor.Month()
			})})
		}
		return points

	default:
		points := make([]Point, 0, 5)
		for _, daysAgo := range []int{28, 21, 14, 7, 0} {
			anchor := today.AddDate(0, 0, -daysAgo)
			lo, hi := anchor.AddDate(0, 0, -3), anchor.AddDate(0, 0, 3)
			points = append(points, Point{Time: anchor, Amount: sum(func(e core.Expense) bool {
				d, ok := day(e)
				return ok && !d.Before(lo) && !d.After(hi)
			})})
		}
		return points
	}
}

// yearAnchor is the first day of the month 2*i months before t. Anchoring
// on the first keeps a 31st from rolling into the following month.
func yearAnchor(t time.Time, i int) time.Time {
	return now.With(t).BeginningOfMonth().AddDate(0, -2*i, 0)
}

// Labels returns one short label per bucket of p at t.
func Labels(p Period, t time.Time) []string {
	switch p {
	case PeriodWeek:
		out := make([]string, 0, 7)
		for i := 6; i >= 0; i-- {
			out = append(out, t.AddDate(0, 0, -i).Weekday().String()[:1])
		}
		return out
	case PeriodYear:
		out := make([]string, 0, 6)
		for i := 5; i >= 0; i-- {
			out = append(out, yearAnchor(t, i).Month().String()[:1])
		}
		return out
	default:
		return []string{"1", "7", "14", "21", "28"}
	}
}

// Compute derives the full summary of expenses for p at t.
func Compute(expenses []core.Expense, p Period, t time.Time) Summary {
	from, to := Window(p, t)
	filtered := Filter(expenses, p, t)
	points := Buckets(filtered, p, t)
	amounts := Amounts(points)
	cats := ByCategory(filtered)
	return Summary{
		Period:        p,
		From:          from,
		To:            to,
		Count:         len(filtered),
		Total:         Total(filtered),
		AveragePerDay: AveragePerDay(filtered, p, t),
		Categories:    cats,
		TopCategory:   Top(cats),
		Points:        points,
		Labels:        Labels(p, t),
		LinePath:      LinePath(amounts),
		AreaPath:      AreaPath(amounts),
	}
}
