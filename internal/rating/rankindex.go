package rating

import (
	"slices"
	"sort"

	"traderboard/internal/domain"
)

// rankIndex holds every user with a nonzero weekly total, bucketed by exact
// amount and ordered by amount descending. amounts and buckets move
// together: an amount is present in the slice iff its bucket is non-empty.
type rankIndex struct {
	amounts []domain.Amount // distinct amounts, descending
	buckets map[domain.Amount]map[domain.UserID]struct{}
}

func newRankIndex() *rankIndex {
	return &rankIndex{
		buckets: make(map[domain.Amount]map[domain.UserID]struct{}),
	}
}

// search returns the first position whose amount is <= a.
func (x *rankIndex) search(a domain.Amount) int {
	return sort.Search(len(x.amounts), func(i int) bool {
		return x.amounts[i] <= a
	})
}

func (x *rankIndex) add(id domain.UserID, a domain.Amount) {
	users, ok := x.buckets[a]
	if !ok {
		users = make(map[domain.UserID]struct{})
		x.buckets[a] = users
		x.amounts = slices.Insert(x.amounts, x.search(a), a)
	}
	users[id] = struct{}{}
}

// remove reports false when the user is not in the bucket keyed by a;
// the caller treats that as a broken invariant.
func (x *rankIndex) remove(id domain.UserID, a domain.Amount) bool {
	users, ok := x.buckets[a]
	if !ok {
		return false
	}
	if _, ok = users[id]; !ok {
		return false
	}

	delete(users, id)
	if len(users) == 0 {
		delete(x.buckets, a)
		pos := x.search(a)
		x.amounts = slices.Delete(x.amounts, pos, pos+1)
	}
	return true
}

// top returns up to limit highest-amount buckets, best first.
func (x *rankIndex) top(limit int) []domain.RatingBucket {
	n := min(limit, len(x.amounts))
	out := make([]domain.RatingBucket, 0, n)
	for _, a := range x.amounts[:n] {
		out = append(out, x.bucket(a))
	}
	return out
}

// above returns up to limit buckets strictly greater than a, nearest first.
func (x *rankIndex) above(a domain.Amount, limit int) []domain.RatingBucket {
	var out []domain.RatingBucket
	for i := x.search(a) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, x.bucket(x.amounts[i]))
	}
	return out
}

// below returns up to limit buckets strictly less than a, nearest first.
func (x *rankIndex) below(a domain.Amount, limit int) []domain.RatingBucket {
	first := sort.Search(len(x.amounts), func(i int) bool {
		return x.amounts[i] < a
	})

	var out []domain.RatingBucket
	for i := first; i < len(x.amounts) && len(out) < limit; i++ {
		out = append(out, x.bucket(x.amounts[i]))
	}
	return out
}

func (x *rankIndex) bucket(a domain.Amount) domain.RatingBucket {
	users := make([]domain.UserID, 0, len(x.buckets[a]))
	for id := range x.buckets[a] {
		users = append(users, id)
	}
	slices.Sort(users)
	return domain.RatingBucket{Amount: a, Users: users}
}

func (x *rankIndex) distinctAmounts() int { return len(x.amounts) }
