package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"traderboard/internal/domain"
)

func TestUserRegistered_Handle(t *testing.T) {
	t.Parallel()

	var (
		called   int
		gotID    domain.UserID
		gotName  string
	)

	cmd := NewUserRegistered(10, "test11", func(id domain.UserID, name string) {
		called++
		gotID = id
		gotName = name
	})
	cmd.Handle()

	assert.Equal(t, 1, called)
	assert.Equal(t, domain.UserID(10), gotID)
	assert.Equal(t, "test11", gotName)
}

func TestUserRenamed_Handle(t *testing.T) {
	t.Parallel()

	var (
		gotID   domain.UserID
		gotName string
	)

	var cmd Command = NewUserRenamed(20, "test12", func(id domain.UserID, name string) {
		gotID = id
		gotName = name
	})
	cmd.Handle()

	assert.Equal(t, domain.UserID(20), gotID)
	assert.Equal(t, "test12", gotName)
}

func TestUserConnected_Handle(t *testing.T) {
	t.Parallel()

	var gotID domain.UserID
	NewUserConnected(30, func(id domain.UserID) { gotID = id }).Handle()

	assert.Equal(t, domain.UserID(30), gotID)
}

func TestUserDisconnected_Handle(t *testing.T) {
	t.Parallel()

	var gotID domain.UserID
	NewUserDisconnected(40, func(id domain.UserID) { gotID = id }).Handle()

	assert.Equal(t, domain.UserID(40), gotID)
}

func TestUserDealWon_Handle(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 8, 12, 0, 30, 0, time.Local)

	var (
		gotTS     time.Time
		gotID     domain.UserID
		gotAmount domain.Amount
	)

	NewUserDealWon(ts, 50, 12.5, func(dealTS time.Time, id domain.UserID, amount domain.Amount) {
		gotTS = dealTS
		gotID = id
		gotAmount = amount
	}).Handle()

	assert.Equal(t, ts, gotTS)
	assert.Equal(t, domain.UserID(50), gotID)
	assert.Equal(t, domain.Amount(12.5), gotAmount)
}
