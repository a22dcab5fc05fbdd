// Package api implements the HTTP command surface: one handler per
// player-facing command, each running the guard chain before touching
// the Data Layer, Matchmaker, or Lifecycle Coordinator. The
// dispatch/routing glue (which platform delivers the command, how a
// response renders for a given client) lives outside this package; this
// is the thin, platform-agnostic core surface a real command-dispatch
// layer calls into — a Config struct, a New constructor, and narrow
// collaborator fields on the Handler.
package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/catalog"
	"github.com/rts-ladder/ranked-core/internal/leaderboard"
	"github.com/rts-ladder/ranked-core/internal/lifecycle"
	"github.com/rts-ladder/ranked-core/internal/matchmaker"
	"github.com/rts-ladder/ranked-core/internal/models"
	"github.com/rts-ladder/ranked-core/internal/notify"
	"github.com/rts-ladder/ranked-core/internal/replay"
	"github.com/rts-ladder/ranked-core/internal/store"
)

// DataLayer is the subset of internal/datalayer.Layer the command surface
// calls into directly (beyond what guards.PlayerStore already covers).
type DataLayer interface {
	GetPlayer(id int64) (*models.Player, bool)
	UpsertPlayer(ctx context.Context, id int64, now time.Time) *models.Player
	GetRatingsFor(playerID int64) []*models.RatingRow
	GetPreferences(playerID int64) (*models.Preferences, bool)
	CompleteSetup(ctx context.Context, req models.SetupRequest, id int64, now time.Time) (*models.Player, error)
	UpdateCountry(ctx context.Context, id int64, code string, now time.Time) (*models.Player, error)
	AcceptToS(ctx context.Context, id int64, now time.Time) (*models.Player, error)
	Activate(ctx context.Context, id int64, now time.Time) (*models.Player, error)
	SavePreferences(ctx context.Context, playerID int64, races, vetoes []string)
	RecordCommandAudit(playerID int64, command string, args map[string]interface{}, now time.Time)
}

// Config wires every collaborator the command surface needs. Each field is
// a narrow interface (or the concrete singleton where no test double is
// worth the indirection), built by explicit composition at the top-level
// wiring module rather than a global registry.
type Config struct {
	Data        DataLayer
	Catalog     *catalog.Catalog
	Matchmaker  *matchmaker.Matchmaker
	Coordinator *lifecycle.Coordinator
	Leaderboard *leaderboard.Engine
	Bus         *notify.Bus
	Ingestor    *replay.Ingestor
	Store       store.Store
	Redis       RedisPinger
	Logger      *zap.Logger

	International bool // name-validation mode: English-only charset vs Unicode
}

// RedisPinger is the narrow surface /readyz needs from the cache client.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Handler holds every collaborator the command handlers close over.
type Handler struct {
	data        DataLayer
	catalog     *catalog.Catalog
	matchmaker  *matchmaker.Matchmaker
	coordinator *lifecycle.Coordinator
	leaderboard *leaderboard.Engine
	bus         *notify.Bus
	ingestor    *replay.Ingestor
	store       store.Store
	redis       RedisPinger
	logger      *zap.SugaredLogger

	international bool
}

// New constructs a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		data:          cfg.Data,
		catalog:       cfg.Catalog,
		matchmaker:    cfg.Matchmaker,
		coordinator:   cfg.Coordinator,
		leaderboard:   cfg.Leaderboard,
		bus:           cfg.Bus,
		ingestor:      cfg.Ingestor,
		store:         cfg.Store,
		redis:         cfg.Redis,
		logger:        cfg.Logger.Sugar(),
		international: cfg.International,
	}
}
