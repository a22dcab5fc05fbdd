package guards

import (
	"context"
	"time"

	"github.com/rts-ladder/ranked-core/internal/models"
)

type fakePlayerStore struct {
	players map[int64]*models.Player
}

func newFakePlayerStore() *fakePlayerStore {
	return &fakePlayerStore{players: make(map[int64]*models.Player)}
}

func (f *fakePlayerStore) GetPlayer(id int64) (*models.Player, bool) {
	p, ok := f.players[id]
	return p, ok
}

func (f *fakePlayerStore) UpsertPlayer(ctx context.Context, id int64, now time.Time) *models.Player {
	p := models.NewPlayer(id, now)
	f.players[id] = p
	return p
}
