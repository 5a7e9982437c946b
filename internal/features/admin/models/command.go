package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown admin command")
	ErrBadArguments   = errors.New("bad command arguments")
)

// Command is one of the admin operations below. The set is closed.
type Command interface {
	Name() string
	command()
}

type Ban struct{ UserID int64 }

type Unban struct{ UserID int64 }

// GrantPremium extends premium by Days. Days <= 0 revokes it.
type GrantPremium struct {
	UserID int64
	Days   int
}

type FreeEmoji struct{ Emoji string }

type ListReservedEmojis struct{}

type Stats struct{}

type ListUsers struct{ Limit int }

type MessageHistory struct{ MessageID int64 }

func (Ban) Name() string                { return "ban" }
func (Unban) Name() string              { return "unban" }
func (GrantPremium) Name() string       { return "grant" }
func (FreeEmoji) Name() string          { return "freeemoji" }
func (ListReservedEmojis) Name() string { return "emojis" }
func (Stats) Name() string              { return "stats" }
func (ListUsers) Name() string          { return "users" }
func (MessageHistory) Name() string     { return "history" }

func (Ban) command()                {}
func (Unban) command()              {}
func (GrantPremium) command()       {}
func (FreeEmoji) command()          {}
func (ListReservedEmojis) command() {}
func (Stats) command()              {}
func (ListUsers) command()          {}
func (MessageHistory) command()     {}

const DefaultListLimit = 20

// Usage lists the chat syntax of every admin command.
var Usage = []string{
	"/ban <user_id>",
	"/unban <user_id>",
	"/grant <user_id> <days>",
	"/freeemoji <emoji>",
	"/emojis",
	"/stats",
	"/users [limit]",
	"/history <message_id>",
}

// Parse reads a chat command such as "/grant 42 30". The leading slash and
// a @botname suffix are optional.
func Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, ErrUnknownCommand
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	switch strings.ToLower(name) {
	case "ban":
		id, err := userArg(args, 1)
		if err != nil {
			return nil, err
		}
		return Ban{UserID: id}, nil
	case "unban":
		id, err := userArg(args, 1)
		if err != nil {
			return nil, err
		}
		return Unban{UserID: id}, nil
	case "grant":
		id, err := userArg(args, 2)
		if err != nil {
			return nil, err
		}
		days, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: days must be a number", ErrBadArguments)
		}
		return GrantPremium{UserID: id, Days: days}, nil
	case "freeemoji":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected one emoji", ErrBadArguments)
		}
		return FreeEmoji{Emoji: args[0]}, nil
	case "emojis":
		return ListReservedEmojis{}, nil
	case "stats":
		return Stats{}, nil
	case "users":
		limit := DefaultListLimit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: limit must be a positive number", ErrBadArguments)
			}
			limit = n
		}
		return ListUsers{Limit: limit}, nil
	case "history":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected a message id", ErrBadArguments)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: message id must be a positive number", ErrBadArguments)
		}
		return MessageHistory{MessageID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func userArg(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, fmt.Errorf("%w: expected %d argument(s)", ErrBadArguments, want)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user id must be a positive number", ErrBadArguments)
	}
	return id, nil
}
