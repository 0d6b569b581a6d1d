package backpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingBooks(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		present  []string
		want     []string
	}{
		{name: "all present", required: []string{"Maths 5", "French"}, present: []string{"French", " Maths 5 ", "Atlas"}, want: []string{}},
		{name: "case matters", required: []string{"Math Workbook", "French"}, present: []string{"math workbook", "French"}, want: []string{"Math Workbook"}},
		{name: "keeps required order", required: []string{"Science", "Maths 5", "Geography 5"}, present: []string{"Maths 5"}, want: []string{"Science", "Geography 5"}},
		{name: "duplicates reported once", required: []string{"Atlas", "Atlas ", " Atlas"}, present: nil, want: []string{"Atlas"}},
		{name: "nothing required", required: nil, present: []string{"Atlas"}, want: []string{}},
		{name: "blank titles ignored", required: []string{"  ", "Atlas"}, present: []string{""}, want: []string{"Atlas"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissingBooks(tt.required, tt.present))
		})
	}
}

func TestEvaluate(t *testing.T) {
	hw := Homework{ID: "hw1", RequiredBooks: []string{"Maths 5", "Geography 5", "French"}}

	res := Evaluate(hw, Backpack{Books: []string{"Maths 5", "french"}})
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.False(t, res.IsComplete())
	assert.Equal(t, "You are missing: Geography 5, French", res.Message)
	assert.Equal(t, "hw1", res.HomeworkID)

	res = Evaluate(hw, Backpack{Books: []string{"French", "Geography 5", "Maths 5"}})
	assert.True(t, res.IsComplete())
	assert.Empty(t, res.MissingBooks)
	assert.Equal(t, allBooksMessage, res.Message)
}

func TestCleanTitles(t *testing.T) {
	assert.Equal(t, []string{"Maths 5", "french", "FRENCH"}, CleanTitles([]string{" Maths 5", "", "french", "FRENCH", "Maths 5 "}))
	assert.Equal(t, []string{}, CleanTitles(nil))
}
