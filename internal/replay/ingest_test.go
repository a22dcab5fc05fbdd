package replay

import (
	"context"
	"testing"
	"time"

	"github.com/rts-ladder/ranked-core/internal/apperr"
	"github.com/rts-ladder/ranked-core/internal/models"
)

type fakeParser struct {
	parsed Parsed
	err    error
}

func (f fakeParser) Parse(data []byte) (Parsed, error) { return f.parsed, f.err }

type fakeStore struct {
	ref string
	err error
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	return f.ref, f.err
}
func (f *fakeStore) Get(ctx context.Context, ref string) ([]byte, error) { return nil, nil }

type fakeData struct {
	match        *models.Match
	recordErr    error
	recordCalled int
	hashConflict bool
}

func (f *fakeData) RecordReplay(ctx context.Context, matchID, uploaderID int64, artifact *models.ReplayArtifact, now time.Time) error {
	f.recordCalled++
	return f.recordErr
}
func (f *fakeData) GetMatch(id int64) (*models.Match, bool) { return f.match, f.match != nil }
func (f *fakeData) ReplayHashConflict(hash string, matchID int64) bool { return f.hashConflict }

type fakeConflicter struct {
	called  int
	matchID int64
}

func (f *fakeConflicter) MarkReplayConflict(ctx context.Context, matchID int64, now time.Time) {
	f.called++
	f.matchID = matchID
}

func TestUpload_RejectsBadExtension(t *testing.T) {
	in := New(Options{Parser: fakeParser{}, Store: &fakeStore{}, Data: &fakeData{}})
	_, err := in.Upload(context.Background(), 1, 2, "replay.zip", []byte("data"), time.Now())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpload_RejectsOversize(t *testing.T) {
	in := New(Options{Parser: fakeParser{}, Store: &fakeStore{}, Data: &fakeData{}})
	big := make([]byte, models.MaxReplaySizeBytes+1)
	_, err := in.Upload(context.Background(), 1, 2, "replay.SC2Replay", big, time.Now())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpload_Success(t *testing.T) {
	data := &fakeData{match: &models.Match{ID: 1, Player1ID: 10, Player2ID: 20}}
	in := New(Options{
		Parser: fakeParser{parsed: Parsed{Duration: time.Minute, MapName: "Lost Temple"}},
		Store:  &fakeStore{ref: "replays/1/player_2.SC2Replay"},
		Data:   data,
	})
	artifact, err := in.Upload(context.Background(), 1, 2, "replay.SC2Replay", []byte("binary"), time.Now())
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if artifact.MapName != "Lost Temple" {
		t.Errorf("MapName = %q, want Lost Temple", artifact.MapName)
	}
	if data.recordCalled != 1 {
		t.Errorf("expected RecordReplay called once, got %d", data.recordCalled)
	}
}

func TestUpload_HashCollisionMarksConflict(t *testing.T) {
	conflicter := &fakeConflicter{}
	data := &fakeData{match: &models.Match{ID: 2, Player1ID: 30, Player2ID: 40}, recordErr: apperr.Conflict("dup hash", nil)}
	in := New(Options{
		Parser:      fakeParser{},
		Store:       &fakeStore{ref: "ref"},
		Data:        data,
		Coordinator: conflicter,
	})
	_, err := in.Upload(context.Background(), 2, 30, "replay.SC2Replay", []byte("binary"), time.Now())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflicter.called != 1 || conflicter.matchID != 2 {
		t.Fatalf("expected MarkReplayConflict(2) once, got called=%d matchID=%d", conflicter.called, conflicter.matchID)
	}
}

func TestUpload_HashConflictSkipsStoreAndParse(t *testing.T) {
	conflicter := &fakeConflicter{}
	store := &fakeStore{ref: "should-not-be-used"}
	data := &fakeData{match: &models.Match{ID: 3, Player1ID: 50, Player2ID: 60}, hashConflict: true}
	in := New(Options{
		Parser:      fakeParser{err: context.DeadlineExceeded}, // would fail if ever reached
		Store:       store,
		Data:        data,
		Coordinator: conflicter,
	})
	_, err := in.Upload(context.Background(), 3, 50, "replay.SC2Replay", []byte("binary"), time.Now())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflicter.called != 1 || conflicter.matchID != 3 {
		t.Fatalf("expected MarkReplayConflict(3) once, got called=%d matchID=%d", conflicter.called, conflicter.matchID)
	}
	if data.recordCalled != 0 {
		t.Errorf("RecordReplay should not be called once a hash conflict is detected up front, got %d calls", data.recordCalled)
	}
}

func TestUpload_ParseFailureIsValidationError(t *testing.T) {
	in := New(Options{
		Parser: fakeParser{err: context.DeadlineExceeded},
		Store:  &fakeStore{},
		Data:   &fakeData{},
	})
	_, err := in.Upload(context.Background(), 1, 2, "replay.SC2Replay", []byte("binary"), time.Now())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
