package datalayer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/store"
)

// ph renders a 1-based placeholder for the given dialect; both postgres and
// modern sqlite accept the same ON CONFLICT upsert grammar, so only the
// positional marker differs between them.
func ph(d store.Dialect, n int) string { return store.Placeholder(d, n) }

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func execInsertPlayer(ctx context.Context, s store.Store, d store.Dialect, p *models.Player) error {
	return execUpsertPlayer(ctx, s, d, p)
}

func execUpsertPlayer(ctx context.Context, s store.Store, d store.Dialect, p *models.Player) error {
	q := fmt.Sprintf(`INSERT INTO players
		(id, display_name, battle_tag, alt_name_1, alt_name_2, country, region,
		 accepted_tos, completed_setup, activated, abort_quota, abort_quota_reset_at,
		 accepted_tos_date, completed_setup_date, created_at, updated_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)
		ON CONFLICT (id) DO UPDATE SET
			display_name=excluded.display_name, battle_tag=excluded.battle_tag,
			alt_name_1=excluded.alt_name_1, alt_name_2=excluded.alt_name_2,
			country=excluded.country, region=excluded.region,
			accepted_tos=excluded.accepted_tos, completed_setup=excluded.completed_setup,
			activated=excluded.activated, abort_quota=excluded.abort_quota,
			abort_quota_reset_at=excluded.abort_quota_reset_at,
			accepted_tos_date=COALESCE(players.accepted_tos_date, excluded.accepted_tos_date),
			completed_setup_date=COALESCE(players.completed_setup_date, excluded.completed_setup_date),
			updated_at=excluded.updated_at`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6), ph(d, 7),
		ph(d, 8), ph(d, 9), ph(d, 10), ph(d, 11), ph(d, 12), ph(d, 13), ph(d, 14), ph(d, 15), ph(d, 16))

	_, err := s.Exec(ctx, q,
		p.ID, p.DisplayName, p.BattleTag, p.AltName1, p.AltName2, p.Country, p.Region,
		p.AcceptedToS, p.CompletedSetup, p.Activated, p.AbortQuota, formatTime(p.AbortQuotaResetAt),
		formatTimePtr(p.AcceptedToSDate), formatTimePtr(p.CompletedSetupDate),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

func execUpsertPreferences(ctx context.Context, s store.Store, d store.Dialect, p *models.Preferences) error {
	racesJSON, _ := json.Marshal(p.Races)
	vetoesJSON, _ := json.Marshal(p.Vetoes)
	q := fmt.Sprintf(`INSERT INTO preferences (player_id, races, vetoes) VALUES (%s,%s,%s)
		ON CONFLICT (player_id) DO UPDATE SET races=excluded.races, vetoes=excluded.vetoes`,
		ph(d, 1), ph(d, 2), ph(d, 3))
	_, err := s.Exec(ctx, q, p.PlayerID, string(racesJSON), string(vetoesJSON))
	return err
}

func execInsertMatch(ctx context.Context, s store.Store, d store.Dialect, m *models.Match) error {
	q := fmt.Sprintf(`INSERT INTO matches
		(id, player_1_id, player_2_id, race_1, race_2, map, server, status, created_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6), ph(d, 7), ph(d, 8), ph(d, 9))
	_, err := s.Exec(ctx, q, m.ID, m.Player1ID, m.Player2ID, m.Race1, m.Race2, m.Map, m.Server,
		string(m.Status), formatTime(m.CreatedAt))
	return err
}

func execUpdateMatchReplay(ctx context.Context, s store.Store, d store.Dialect, m *models.Match) error {
	q := fmt.Sprintf(`UPDATE matches SET
		replay_1_hash=%s, replay_1_uploaded_at=%s, replay_2_hash=%s, replay_2_uploaded_at=%s
		WHERE id=%s`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5))
	_, err := s.Exec(ctx, q, m.Replay1Hash, formatTimePtr(m.Replay1UploadedAt),
		m.Replay2Hash, formatTimePtr(m.Replay2UploadedAt), m.ID)
	return err
}

func execInsertReplayArtifact(ctx context.Context, s store.Store, d store.Dialect, a *models.ReplayArtifact) error {
	q := fmt.Sprintf(`INSERT INTO replay_artifacts
		(hash, uploaded_at, uploader_id, parsed_duration_ms, map_name, storage_ref)
		VALUES (%s,%s,%s,%s,%s,%s)
		ON CONFLICT (hash) DO NOTHING`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6))
	_, err := s.Exec(ctx, q, a.Hash, formatTime(a.UploadedAt), a.UploaderID,
		a.ParsedDuration.Milliseconds(), a.MapName, a.StorageRef)
	return err
}

func execFinalizeMatch(ctx context.Context, s store.Store, d store.Dialect, m *models.Match) error {
	q := fmt.Sprintf(`UPDATE matches SET
		status=%s, report_1=%s, report_2=%s, delta_1=%s, delta_2=%s, played_at=%s
		WHERE id=%s`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6), ph(d, 7))
	_, err := s.Exec(ctx, q, string(m.Status), string(m.Report1), string(m.Report2),
		m.Delta1, m.Delta2, formatTimePtr(m.PlayedAt), m.ID)
	return err
}

func execUpsertRating(ctx context.Context, s store.Store, d store.Dialect, r *models.RatingRow) error {
	q := fmt.Sprintf(`INSERT INTO rating_rows
		(player_id, race_code, mmr, games_played, games_won, games_lost, games_drawn, last_played)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s)
		ON CONFLICT (player_id, race_code) DO UPDATE SET
			mmr=excluded.mmr, games_played=excluded.games_played, games_won=excluded.games_won,
			games_lost=excluded.games_lost, games_drawn=excluded.games_drawn, last_played=excluded.last_played`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6), ph(d, 7), ph(d, 8))
	_, err := s.Exec(ctx, q, r.PlayerID, r.RaceCode, r.MMR, r.GamesPlayed, r.GamesWon,
		r.GamesLost, r.GamesDrawn, formatTime(r.LastPlayed))
	return err
}

func execInsertActionLog(ctx context.Context, s store.Store, d store.Dialect, e models.ActionLogEntry) error {
	q := fmt.Sprintf(`INSERT INTO action_log (player_id, field, old_value, new_value, timestamp, source)
		VALUES (%s,%s,%s,%s,%s,%s)`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4), ph(d, 5), ph(d, 6))
	_, err := s.Exec(ctx, q, e.PlayerID, e.Field, e.OldValue, e.NewValue, formatTime(e.Timestamp), string(e.Source))
	return err
}

func execInsertCommandAudit(ctx context.Context, s store.Store, d store.Dialect, a models.CommandCallAudit) error {
	q := fmt.Sprintf(`INSERT INTO command_call_audit (player_id, command, args, timestamp)
		VALUES (%s,%s,%s,%s)`,
		ph(d, 1), ph(d, 2), ph(d, 3), ph(d, 4))
	_, err := s.Exec(ctx, q, a.PlayerID, a.Command, a.Args, formatTime(a.Timestamp))
	return err
}
