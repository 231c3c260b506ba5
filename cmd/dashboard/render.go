package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"rescueboard/internal/dashboard"
	"rescueboard/internal/model"
)

type viewOptions struct {
	Tab    dashboard.Tab
	Query  string
	Top    int
	Claims int
}

var statusColor = map[model.FoodStatus]*color.Color{
	model.FoodStatusAvailable: color.New(color.FgGreen),
	model.FoodStatusTaken:     color.New(color.FgYellow),
	model.FoodStatusExpired:   color.New(color.FgHiBlack),
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

func render(w io.Writer, s dashboard.Snapshot, v viewOptions) {
	fmt.Fprintf(w, "Food Rescue Dashboard   %s\n\n", s.FetchedAt.Format("15:04:05"))
	if s.Err != nil {
		color.New(color.FgRed).Fprintf(w, "refresh failed: %v\n", s.Err)
		return
	}

	st := s.Stats
	fmt.Fprintf(w, "Total %d   Available %d   Taken %d   Expired %d   Rescue rate %d%%\n\n",
		st.TotalFoods, st.Available, st.Taken, st.Expired, dashboard.RescueRate(st))

	if v.Top > 0 {
		fmt.Fprintln(w, "Top locations")
		for _, lc := range dashboard.TopLocations(s.Foods, v.Top) {
			fmt.Fprintf(w, "  %-28s %s %d\n", lc.Location, strings.Repeat("#", lc.Count), lc.Count)
		}
		fmt.Fprintln(w)
	}

	if v.Claims > 0 {
		fmt.Fprintln(w, "Recent claims")
		claims := dashboard.RecentClaims(s.Foods, v.Claims)
		if len(claims) == 0 {
			fmt.Fprintln(w, "  none yet")
		}
		for _, f := range claims {
			fmt.Fprintf(w, "  %s at %s, claimed by %s\n", f.Title, f.Location, refName(f.Claimer))
		}
		fmt.Fprintln(w)
	}

	foods := dashboard.Filter(s.Foods, v.Tab, v.Query)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLOCATION\tPOSTER\tCLAIMER\tSTATUS\tPOSTED")
	for _, f := range foods {
		status := string(f.Status)
		if c, ok := statusColor[f.Status]; ok {
			status = c.Sprint(status)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Title, f.Location, refName(f.User), refName(f.Claimer), status, f.CreatedAt.Format("02 Jan 15:04"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d of %d listings shown\n", len(foods), len(s.Foods))
}

func refName(u *model.UserRef) string {
	if u == nil {
		return "-"
	}
	return u.Name
}
