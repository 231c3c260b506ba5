package dashboard

import (
	"math"
	"sort"
	"strings"

	"rescueboard/internal/model"
)

// Tab selects which listings the table shows.
type Tab string

const (
	TabAll       Tab = "all"
	TabAvailable Tab = "available"
	TabTaken     Tab = "taken"
	TabExpired   Tab = "expired"
)

// Filter keeps the foods in tab whose title, location or poster name contains
// query, case-insensitively. An empty query matches everything.
func Filter(foods []model.Food, tab Tab, query string) []model.Food {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Food, 0, len(foods))
	for _, f := range foods {
		if tab != "" && tab != TabAll && string(f.Status) != string(tab) {
			continue
		}
		if q != "" && !matches(f, q) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func matches(f model.Food, q string) bool {
	if strings.Contains(strings.ToLower(f.Title), q) || strings.Contains(strings.ToLower(f.Location), q) {
		return true
	}
	return f.User != nil && strings.Contains(strings.ToLower(f.User.Name), q)
}

// RescueRate is the rounded percentage of taken foods, 0 when there are none.
func RescueRate(stats model.FoodStats) int {
	if stats.TotalFoods == 0 {
		return 0
	}
	return int(math.Round(float64(stats.Taken) / float64(stats.TotalFoods) * 100))
}

// LocationCount is one bar of the location histogram.
type LocationCount struct {
	Location string
	Count    int
}

// TopLocations returns the n most frequent locations, ties broken by name.
func TopLocations(foods []model.Food, n int) []LocationCount {
	counts := make(map[string]int)
	for _, f := range foods {
		counts[f.Location]++
	}
	out := make([]LocationCount, 0, len(counts))
	for loc, c := range counts {
		out = append(out, LocationCount{Location: loc, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Location < out[j].Location
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentClaims returns up to n taken foods, most recently claimed first. Foods
// without a claim time keep their input order after the timed ones.
func RecentClaims(foods []model.Food, n int) []model.Food {
	out := make([]model.Food, 0, len(foods))
	for _, f := range foods {
		if f.Status == model.FoodStatusTaken {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ClaimedAt, out[j].ClaimedAt
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
