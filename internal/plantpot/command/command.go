// Package command is the durable inbox operators use to reach the running engine.
// It holds at most one pending command. Each command carries an issuedAt token that
// only ever increases, so a command is executed at most once.
package command

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/saturnblock/pythonplantpot/internal/log"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/fileutil"
)

// Action names a command kind as stored on disk
type Action string

// Supported actions
const (
	ActionNone       Action = "none"
	ActionManualPump Action = "manual_pump"
	ActionTimedPump  Action = "timed_pump"
	ActionRepotReset Action = "repot_reset"
)

// Command is the on-disk record
type Command struct {
	Action          Action `json:"action"`
	AmountMl        int    `json:"amountMl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	IssuedAt        int64  `json:"issuedAt"`
}

// None is the empty command
var None = Command{Action: ActionNone}

// IsNone reports whether there is nothing to do
func (c Command) IsNone() bool {
	return c.Action == ActionNone || c.Action == ""
}

// Duration returns the requested run time of a timed pump
func (c Command) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

func (c Command) String() string {
	switch c.Action {
	case ActionManualPump:
		return fmt.Sprintf("%s{%dml}", c.Action, c.AmountMl)
	case ActionTimedPump:
		return fmt.Sprintf("%s{%ds}", c.Action, c.DurationSeconds)
	default:
		return string(c.Action)
	}
}

// Validate checks the parameters the action needs
func (c Command) Validate() error {
	switch c.Action {
	case ActionNone, ActionRepotReset:
		return nil
	case ActionManualPump:
		if c.AmountMl <= 0 {
			return fmt.Errorf("manual pump needs a positive amount, got %d", c.AmountMl)
		}
	case ActionTimedPump:
		if c.DurationSeconds <= 0 {
			return fmt.Errorf("timed pump needs a positive duration, got %d", c.DurationSeconds)
		}
	default:
		return perrors.Wrapf(perrors.ErrUnknownCommand, "action %q", c.Action)
	}
	return nil
}

// ManualPump requests amountMl of water now
func ManualPump(amountMl int) Command {
	return Command{Action: ActionManualPump, AmountMl: amountMl}
}

// TimedPump requests the pump to run for d
func TimedPump(d time.Duration) Command {
	return Command{Action: ActionTimedPump, DurationSeconds: int(d / time.Second)}
}

// RepotReset requests a fresh cycle budget
func RepotReset() Command {
	return Command{Action: ActionRepotReset}
}

// Channel is a file-backed command inbox. Writers in this process serialize on mu;
// writers in other processes (the CLI fallback) on an flock held on path+".lock".
type Channel struct {
	path string
	now  func() time.Time
	lock *flock.Flock

	mu           sync.Mutex
	lastConsumed int64
}

// Open returns the channel stored at path. A command already marked consumed on disk
// seeds the dedup token.
func Open(path string) *Channel {
	ch := &Channel{path: path, now: time.Now, lock: flock.New(path + ".lock")}
	if cmd, err := ch.read(); err == nil && cmd.IsNone() {
		ch.lastConsumed = cmd.IssuedAt
	}
	return ch
}

// Path returns the inbox file
func (ch *Channel) Path() string { return ch.path }

func (ch *Channel) read() (Command, error) {
	var cmd Command
	if err := fileutil.ReadJSON(ch.path, &cmd); err != nil {
		if os.IsNotExist(err) {
			return None, nil
		}
		return None, perrors.Mark(err, perrors.ErrCommandUnreadable)
	}
	return cmd, nil
}

// withLock runs fn holding both the in-process mutex and the inbox file lock
func (ch *Channel) withLock(fn func() error) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if err := ch.lock.Lock(); err != nil {
		return perrors.Mark(fmt.Errorf("failed to lock command inbox: %w", err), perrors.ErrPersistenceFailure)
	}
	defer func() {
		if err := ch.lock.Unlock(); err != nil {
			log.Error("Failed to unlock command inbox: %v", err)
		}
	}()
	return fn()
}

// Peek returns the pending command without consuming it. It never blocks on a writer;
// an unreadable or malformed inbox reads as None.
func (ch *Channel) Peek() Command {
	cmd, err := ch.read()
	if err == nil {
		if verr := cmd.Validate(); verr != nil {
			err = perrors.Mark(verr, perrors.ErrCommandUnreadable)
		}
	}
	if err != nil {
		log.Debug("command inbox: %v", err)
		return None
	}
	if cmd.IsNone() {
		return None
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if cmd.IssuedAt <= ch.lastConsumed {
		return None
	}
	return cmd
}

// Consume marks cmd as executed. The token is remembered even when the inbox
// cannot be rewritten, so the command will not run again in this process.
// A command issued after cmd is left pending.
func (ch *Channel) Consume(cmd Command) error {
	return ch.withLock(func() error {
		if cmd.IssuedAt > ch.lastConsumed {
			ch.lastConsumed = cmd.IssuedAt
		}

		current, err := ch.read()
		if err == nil && current.IssuedAt > ch.lastConsumed {
			// a newer command arrived after the peek
			return nil
		}
		if err := fileutil.WriteJSONAtomic(ch.path, Command{Action: ActionNone, IssuedAt: ch.lastConsumed}); err != nil {
			return perrors.Mark(err, perrors.ErrPersistenceFailure)
		}
		return nil
	})
}

// Issue stores cmd as the pending command, replacing any unconsumed one, and returns
// it stamped with a fresh issuedAt token.
func (ch *Channel) Issue(cmd Command) (Command, error) {
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	if cmd.IsNone() {
		return cmd, fmt.Errorf("refusing to issue an empty command")
	}

	err := ch.withLock(func() error {
		previous, err := ch.read()
		if err != nil {
			log.Debug("command inbox: %v", err)
		}
		if !previous.IsNone() && previous.IssuedAt > ch.lastConsumed {
			log.Warn("Replacing pending command %s that the engine has not picked up", previous)
		}

		floor := ch.lastConsumed
		if previous.IssuedAt > floor {
			floor = previous.IssuedAt
		}
		cmd.IssuedAt = ch.now().UnixMilli()
		if cmd.IssuedAt <= floor {
			cmd.IssuedAt = floor + 1
		}

		if err := fileutil.WriteJSONAtomic(ch.path, cmd); err != nil {
			return perrors.Mark(err, perrors.ErrPersistenceFailure)
		}
		return nil
	})
	return cmd, err
}
