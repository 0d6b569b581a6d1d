package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	users := []User{
		{ID: "4", Name: "Dan", Points: 10, Streak: 1},
		{ID: "1", Name: "Amina", Points: 30, Streak: 0},
		{ID: "3", Name: "Chloe", Points: 10, Streak: 1},
		{ID: "2", Name: "Bob", Points: 10, Streak: 4},
		{ID: "6", Name: "Chloe", Points: 10, Streak: 1},
		{ID: "5", Name: "Eve", Points: 0, Streak: 0},
	}

	got := Rank(users)

	wantIDs := []string{"1", "2", "3", "6", "4", "5"}
	if assert.Len(t, got, len(wantIDs)) {
		for i, st := range got {
			assert.Equal(t, wantIDs[i], st.ID)
			assert.Equal(t, i+1, st.Rank)
			if i > 0 {
				assert.LessOrEqual(t, st.Points, got[i-1].Points)
			}
		}
	}
	assert.Equal(t, "4", users[0].ID, "input must not be reordered")
	assert.Empty(t, Rank(nil))
}
