package finance

import "sort"

type LeaderboardRow struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	XP    int    `json:"xp"`
	Level int    `json:"level"`
	You   bool   `json:"you"`
}

var leaderboardPeers = []LeaderboardRow{
	{Name: "Aarav", XP: 1850},
	{Name: "Diya", XP: 1620},
	{Name: "Kabir", XP: 1430},
	{Name: "Isha", XP: 1200},
}

// Leaderboard ranks the user among the practice peers by XP.
func Leaderboard(user UserProfile) []LeaderboardRow {
	name := user.Name
	if name == "" {
		name = "You"
	}
	rows := make([]LeaderboardRow, 0, len(leaderboardPeers)+1)
	rows = append(rows, LeaderboardRow{Name: name, XP: user.XP, You: true})
	rows = append(rows, leaderboardPeers...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].XP > rows[j].XP })
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].Level = LevelForXP(rows[i].XP)
	}
	return rows
}
