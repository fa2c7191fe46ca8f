package command

import (
	"time"

	"traderboard/internal/domain"
)

// Command is one queued state mutation. The closed set of variants below is
// everything the dispatch loop ever applies; each instance carries its
// payload plus the handler bound at construction time, so Handle needs no
// type switch on the consumer side.
type Command interface {
	Handle()
}

type RegisteredFunc func(domain.UserID, string)

type UserRegistered struct {
	ID   domain.UserID
	Name string

	fn RegisteredFunc
}

func NewUserRegistered(id domain.UserID, name string, fn RegisteredFunc) *UserRegistered {
	return &UserRegistered{ID: id, Name: name, fn: fn}
}

func (c *UserRegistered) Handle() { c.fn(c.ID, c.Name) }

type RenamedFunc func(domain.UserID, string)

type UserRenamed struct {
	ID   domain.UserID
	Name string

	fn RenamedFunc
}

func NewUserRenamed(id domain.UserID, name string, fn RenamedFunc) *UserRenamed {
	return &UserRenamed{ID: id, Name: name, fn: fn}
}

func (c *UserRenamed) Handle() { c.fn(c.ID, c.Name) }

type ConnectedFunc func(domain.UserID)

type UserConnected struct {
	ID domain.UserID

	fn ConnectedFunc
}

func NewUserConnected(id domain.UserID, fn ConnectedFunc) *UserConnected {
	return &UserConnected{ID: id, fn: fn}
}

func (c *UserConnected) Handle() { c.fn(c.ID) }

type DisconnectedFunc func(domain.UserID)

type UserDisconnected struct {
	ID domain.UserID

	fn DisconnectedFunc
}

func NewUserDisconnected(id domain.UserID, fn DisconnectedFunc) *UserDisconnected {
	return &UserDisconnected{ID: id, fn: fn}
}

func (c *UserDisconnected) Handle() { c.fn(c.ID) }

type DealWonFunc func(time.Time, domain.UserID, domain.Amount)

type UserDealWon struct {
	TS     time.Time
	ID     domain.UserID
	Amount domain.Amount

	fn DealWonFunc
}

func NewUserDealWon(ts time.Time, id domain.UserID, amount domain.Amount, fn DealWonFunc) *UserDealWon {
	return &UserDealWon{TS: ts, ID: id, Amount: amount, fn: fn}
}

func (c *UserDealWon) Handle() { c.fn(c.TS, c.ID, c.Amount) }
