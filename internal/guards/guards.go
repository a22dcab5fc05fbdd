// Package guards implements the command guards and validators: pure
// functions (plus one read to the Data Layer) that gate every command
// handler on player existence, ToS acceptance, setup completion,
// activation state, and DM-only channel rules, before input ever reaches
// the Data Layer's mutating calls. Violations are returned as typed
// apperr values, never leaked as platform exceptions, centralizing
// taxonomy-to-response mapping at the boundary instead of per handler.
package guards

import (
	"context"
	"time"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/models"
)

// PlayerStore is the narrow Data Layer surface guards read from (and the
// one write every guard chain performs: auto-creating a minimal player
// record on first guarded interaction).
type PlayerStore interface {
	GetPlayer(id int64) (*models.Player, bool)
	UpsertPlayer(ctx context.Context, id int64, now time.Time) *models.Player
}

// DMOnlyCommands is the closed set of commands restricted to a direct
// message with the bot rather than a public channel.
var DMOnlyCommands = map[string]bool{
	"queue": true,
	"prune": true,
}

// EnsurePlayer auto-creates a minimal player record the first time a user
// passes any command guard, then returns it.
func EnsurePlayer(ctx context.Context, store PlayerStore, playerID int64, now time.Time) *models.Player {
	if p, ok := store.GetPlayer(playerID); ok {
		return p
	}
	return store.UpsertPlayer(ctx, playerID, now)
}

// RequireToS fails unless the player has accepted the ToS, except when the
// command itself is /termsofservice.
func RequireToS(p *models.Player, command string) error {
	if command == "termsofservice" || p.AcceptedToS {
		return nil
	}
	return apperr.Validation("terms of service must be accepted first", nil)
}

// RequireSetup fails unless the player has completed setup, except when
// the command is /setup.
func RequireSetup(p *models.Player, command string) error {
	if command == "setup" || p.CompletedSetup {
		return nil
	}
	return apperr.Validation("account setup must be completed first", nil)
}

// RequireActivated fails unless the player is activated, except when the
// command is /activate.
func RequireActivated(p *models.Player, command string) error {
	if command == "activate" || p.Activated {
		return nil
	}
	return apperr.Validation("account must be activated first", nil)
}

// RequireDMChannel enforces the command-channel rule for DM-only commands.
func RequireDMChannel(command string, isDM bool) error {
	if DMOnlyCommands[command] && !isDM {
		return apperr.Validation("this command is only available in a direct message", nil)
	}
	return nil
}

// Chain runs the standard guard sequence a command handler needs before
// touching the Data Layer's mutating surface: channel rule, auto-create,
// ToS, setup, activation. It stops at the first failure.
func Chain(ctx context.Context, store PlayerStore, playerID int64, command string, isDM bool, now time.Time) (*models.Player, error) {
	if err := RequireDMChannel(command, isDM); err != nil {
		return nil, err
	}
	p := EnsurePlayer(ctx, store, playerID, now)
	if err := RequireToS(p, command); err != nil {
		return p, err
	}
	if err := RequireSetup(p, command); err != nil {
		return p, err
	}
	if err := RequireActivated(p, command); err != nil {
		return p, err
	}
	return p, nil
}
