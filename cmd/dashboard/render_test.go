package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"rescueboard/internal/dashboard"
	"rescueboard/internal/model"
)

func TestRender(t *testing.T) {
	color.NoColor = true
	snap := dashboard.Snapshot{
		FetchedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Stats:     model.FoodStats{TotalFoods: 2, Available: 1, Taken: 1},
		Foods: []model.Food{
			{ID: 1, Title: "Pizza", Location: "Library", Status: model.FoodStatusTaken,
				User: &model.UserRef{Name: "Siti"}, Claimer: &model.UserRef{Name: "Ali"}},
			{ID: 2, Title: "Kuih", Location: "Library", Status: model.FoodStatusAvailable,
				User: &model.UserRef{Name: "Ariq"}},
		},
	}

	var buf bytes.Buffer
	render(&buf, snap, viewOptions{Tab: dashboard.TabAvailable, Top: 3, Claims: 5})
	out := buf.String()

	assert.Contains(t, out, "Recent claims")
	assert.Contains(t, out, "Pizza at Library, claimed by Ali")

	assert.Contains(t, out, "Rescue rate 50%")
	assert.Contains(t, out, "Library")
	assert.Contains(t, out, "Kuih")
	assert.NotContains(t, strings.SplitN(out, "ID ", 2)[1], "Pizza")
	assert.Contains(t, out, "1 of 2 listings shown")

	buf.Reset()
	render(&buf, dashboard.Snapshot{Err: errors.New("offline")}, viewOptions{})
	assert.Contains(t, buf.String(), "refresh failed: offline")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Delete?"))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "Delete?"))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Delete?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Delete?"))
	assert.Contains(t, out.String(), "Delete? [y/N]")
}
