package datalayer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rts-ladder/ranked-core/internal/models"
)

// loadFromStore populates the initial frame from the durable store at
// startup. Construction blocks until this completes.
func (l *Layer) loadFromStore(ctx context.Context) error {
	f := emptyFrame()

	if err := l.loadPlayers(ctx, f); err != nil {
		return err
	}
	if err := l.loadRatings(ctx, f); err != nil {
		return err
	}
	if err := l.loadPreferences(ctx, f); err != nil {
		return err
	}
	if err := l.loadMatches(ctx, f); err != nil {
		return err
	}
	if err := l.loadReplays(ctx, f); err != nil {
		return err
	}

	l.snapshot.Store(f)
	return nil
}

func parseTime(s interface{}) time.Time {
	str, ok := s.(string)
	if !ok || str == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (l *Layer) loadPlayers(ctx context.Context, f *frame) error {
	rows, err := l.store.Query(ctx, `SELECT id, display_name, battle_tag, alt_name_1, alt_name_2,
		country, region, accepted_tos, completed_setup, activated, abort_quota,
		abort_quota_reset_at, accepted_tos_date, completed_setup_date, created_at, updated_at
		FROM players`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Player
		var resetAt, createdAt, updatedAt string
		var tosDate, setupDate *string
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.BattleTag, &p.AltName1, &p.AltName2,
			&p.Country, &p.Region, &p.AcceptedToS, &p.CompletedSetup, &p.Activated, &p.AbortQuota,
			&resetAt, &tosDate, &setupDate, &createdAt, &updatedAt); err != nil {
			return err
		}
		p.AbortQuotaResetAt = parseTime(resetAt)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		if tosDate != nil {
			t := parseTime(*tosDate)
			p.AcceptedToSDate = &t
		}
		if setupDate != nil {
			t := parseTime(*setupDate)
			p.CompletedSetupDate = &t
		}
		pp := p
		f.players[p.ID] = &pp
	}
	return rows.Err()
}

func (l *Layer) loadRatings(ctx context.Context, f *frame) error {
	rows, err := l.store.Query(ctx, `SELECT player_id, race_code, mmr, games_played,
		games_won, games_lost, games_drawn, last_played FROM rating_rows`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.RatingRow
		var lastPlayed *string
		if err := rows.Scan(&r.PlayerID, &r.RaceCode, &r.MMR, &r.GamesPlayed,
			&r.GamesWon, &r.GamesLost, &r.GamesDrawn, &lastPlayed); err != nil {
			return err
		}
		if lastPlayed != nil {
			r.LastPlayed = parseTime(*lastPlayed)
		}
		rr := r
		f.ratings[ratingKey(r.PlayerID, r.RaceCode)] = &rr
	}
	return rows.Err()
}

func (l *Layer) loadPreferences(ctx context.Context, f *frame) error {
	rows, err := l.store.Query(ctx, `SELECT player_id, races, vetoes FROM preferences`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var playerID int64
		var racesJSON, vetoesJSON string
		if err := rows.Scan(&playerID, &racesJSON, &vetoesJSON); err != nil {
			return err
		}
		prefs := &models.Preferences{PlayerID: playerID}
		json.Unmarshal([]byte(racesJSON), &prefs.Races)
		json.Unmarshal([]byte(vetoesJSON), &prefs.Vetoes)
		f.preferences[playerID] = prefs
	}
	return rows.Err()
}

func (l *Layer) loadMatches(ctx context.Context, f *frame) error {
	rows, err := l.store.Query(ctx, `SELECT id, player_1_id, player_2_id, race_1, race_2, map, server,
		replay_1_hash, replay_1_uploaded_at, replay_2_hash, replay_2_uploaded_at,
		report_1, report_2, status, delta_1, delta_2, created_at, played_at FROM matches`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var maxID int64
	for rows.Next() {
		var m models.Match
		var r1h, r2h, rep1, rep2, statusStr, createdAt string
		var r1u, r2u, playedAt *string
		if err := rows.Scan(&m.ID, &m.Player1ID, &m.Player2ID, &m.Race1, &m.Race2, &m.Map, &m.Server,
			&r1h, &r1u, &r2h, &r2u, &rep1, &rep2, &statusStr, &m.Delta1, &m.Delta2, &createdAt, &playedAt); err != nil {
			return err
		}
		m.Replay1Hash = r1h
		m.Replay2Hash = r2h
		m.Report1 = models.ReportedResult(rep1)
		m.Report2 = models.ReportedResult(rep2)
		m.Status = models.MatchStatus(statusStr)
		m.CreatedAt = parseTime(createdAt)
		if r1u != nil {
			t := parseTime(*r1u)
			m.Replay1UploadedAt = &t
		}
		if r2u != nil {
			t := parseTime(*r2u)
			m.Replay2UploadedAt = &t
		}
		if playedAt != nil {
			t := parseTime(*playedAt)
			m.PlayedAt = &t
		}
		mm := m
		f.matches[m.ID] = &mm
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	f.nextMatchID = maxID + 1
	return rows.Err()
}

func (l *Layer) loadReplays(ctx context.Context, f *frame) error {
	rows, err := l.store.Query(ctx, `SELECT hash, uploaded_at, uploader_id, parsed_duration_ms,
		map_name, storage_ref FROM replay_artifacts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.ReplayArtifact
		var uploadedAt string
		var durationMs int64
		if err := rows.Scan(&a.Hash, &uploadedAt, &a.UploaderID, &durationMs, &a.MapName, &a.StorageRef); err != nil {
			return err
		}
		a.UploadedAt = parseTime(uploadedAt)
		a.ParsedDuration = time.Duration(durationMs) * time.Millisecond
		aa := a
		f.replaysByHash[a.Hash] = &aa
	}
	return rows.Err()
}
