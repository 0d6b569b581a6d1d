package user

import "sort"

// Standing is a student's position on the leaderboard.
type Standing struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Points    int    `json:"points"`
	Streak    int    `json:"streak"`
}

// Rank orders users by points, highest first, and numbers them from 1.
// Ties are broken by streak (highest first), then name, then ID.
func Rank(users []User) []Standing {
	sorted := make([]User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Streak != b.Streak {
			return a.Streak > b.Streak
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	standings := make([]Standing, 0, len(sorted))
	for i, usr := range sorted {
		standings = append(standings, Standing{
			Rank:      i + 1,
			ID:        usr.ID,
			Name:      usr.Name,
			Username:  usr.Username,
			AvatarURL: usr.AvatarURL,
			Points:    usr.Points,
			Streak:    usr.Streak,
		})
	}
	return standings
}
