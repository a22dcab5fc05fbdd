package guards

import (
	"context"
	"testing"
	"time"

	"github.com/rts-ladder/ranked-core/internal/models"
)

func TestChain_AutoCreatesPlayerOnFirstInteraction(t *testing.T) {
	store := newFakePlayerStore()
	now := time.Now()

	_, err := Chain(context.Background(), store, 7, "setup", false, now)
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if _, ok := store.GetPlayer(7); !ok {
		t.Fatal("expected player 7 to be auto-created")
	}
}

func TestChain_BlocksUntilToSAccepted(t *testing.T) {
	store := newFakePlayerStore()
	now := time.Now()
	store.players[1] = models.NewPlayer(1, now)

	if _, err := Chain(context.Background(), store, 1, "profile", false, now); err == nil {
		t.Fatal("expected ToS guard to reject /profile before acceptance")
	}
	if _, err := Chain(context.Background(), store, 1, "termsofservice", false, now); err != nil {
		t.Fatalf("expected /termsofservice to bypass the ToS guard, got %v", err)
	}
}

func TestRequireDMChannel(t *testing.T) {
	tests := []struct {
		name    string
		command string
		isDM    bool
		wantErr bool
	}{
		{"queue requires DM", "queue", false, true},
		{"queue in DM passes", "queue", true, false},
		{"prune requires DM", "prune", false, true},
		{"profile allowed anywhere", "profile", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireDMChannel(tt.command, tt.isDM)
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireDMChannel(%q, %v) error = %v, wantErr %v", tt.command, tt.isDM, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"min length 3 passes", "abc", false},
		{"length 2 fails", "ab", true},
		{"max length 12 passes", "abcdefghijkl", false},
		{"length 13 fails", "abcdefghijklm", true},
		{"reserved word fails case-insensitively", "Admin", true},
		{"disallowed charset fails", "bad name!", true},
		{"hyphen and underscore allowed", "a-b_c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.input, false)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplayName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBattleTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty is optional", "", false},
		{"valid tag", "Player-1#1234", false},
		{"missing digits fails", "Player#", true},
		{"too long fails", "ReallyLongName1234#123456", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBattleTag(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBattleTag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
