package session

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// DailyRecord counts completed work phases per local calendar date.
type DailyRecord map[string]int

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func (r DailyRecord) increment(date string) int {
	r[date]++
	return r[date]
}

// prune drops entries dated strictly before cutoff and reports how many went.
func (r DailyRecord) prune(cutoff string) int {
	removed := 0
	for date := range r {
		if date < cutoff {
			delete(r, date)
			removed++
		}
	}
	return removed
}

// Sorted lists the record oldest first.
func (r DailyRecord) Sorted() []DayCount {
	out := make([]DayCount, 0, len(r))
	for date, count := range r {
		out = append(out, DayCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (r DailyRecord) clone() DailyRecord {
	out := make(DailyRecord, len(r))
	for date, count := range r {
		out[date] = count
	}
	return out
}
