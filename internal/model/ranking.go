package model

// RankingEntry is one row of a leaderboard, enriched with concert
// metadata from the catalog. For the popularity board the score is the
// running reservation count; for the sell-out board it is the number of
// seconds from first confirmed reservation to full capacity.
type RankingEntry struct {
	ScheduleID   string  `json:"schedule_id"`
	ConcertTitle string  `json:"concert_title"`
	ConcertDate  string  `json:"concert_date"`
	Score        float64 `json:"score"`
}
