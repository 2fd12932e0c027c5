package web

import (
	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/schedule"
)

// CommandKind selects the mutation a Command carries.
type CommandKind uint8

const (
	CmdSetWeekTimer CommandKind = iota
	CmdSetWeekendTimer
	CmdSetDateTime
	CmdManualSwitch
	CmdSetScreenBlank
)

// Command is a mutation handed to the poll loop. The loop owns the clock
// and the scheduler, so HTTP handlers never touch them directly.
type Command struct {
	Kind    CommandKind
	Rule    schedule.Rule // CmdSetWeekTimer, CmdSetWeekendTimer
	Date    calendar.Date // CmdSetDateTime
	Minutes int           // CmdSetDateTime
	Timeout int           // CmdSetScreenBlank

	done chan error
}

// Reply reports the outcome back to the waiting handler. Safe to call on a
// command without a waiter.
func (c Command) Reply(err error) {
	if c.done != nil {
		select {
		case c.done <- err:
		default:
		}
	}
}
