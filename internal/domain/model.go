package domain

import "time"

// Opaque trader identifier assigned by the platform
type UserID uint64

// Winnings value; deals only ever add, there are no negative amounts
type Amount float64

// One tie bucket of the rating: every user holding exactly this cumulative
// amount at report time. Users are sorted ascending by id
type RatingBucket struct {
	Amount Amount   `json:"amount"`
	Users  []UserID `json:"users"`
}

// Snapshot of one user's rank context at one reporting cycle.
// Top holds the globally best buckets, Above/Below the nearest buckets
// strictly greater/less than the user's amount, nearest first.
// A result is a value: once emitted it belongs to the receiver
type RatingResult struct {
	TS        time.Time `json:"ts"`
	WeekStart time.Time `json:"week_start"`
	UserID    UserID    `json:"user_id"`
	Amount    Amount    `json:"amount"`

	Top   []RatingBucket `json:"top"`
	Above []RatingBucket `json:"above"`
	Below []RatingBucket `json:"below"`
}
