package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"pbem-turn-system/engine"
	"pbem-turn-system/metadata"
	"pbem-turn-system/models"
	"pbem-turn-system/repository"
	"pbem-turn-system/save"
	"pbem-turn-system/storage"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeGames struct {
	game  *models.Game
	saved []*models.Game
}

func copyGame(g *models.Game) *models.Game {
	c := *g
	c.Players = make([]models.GamePlayer, len(g.Players))
	copy(c.Players, g.Players)
	c.DLC = make(models.StringList, len(g.DLC))
	copy(c.DLC, g.DLC)
	return &c
}

func (f *fakeGames) Get(gameID string) (*models.Game, error) {
	if f.game == nil || f.game.ID != gameID {
		return nil, repository.ErrNotFound
	}
	return copyGame(f.game), nil
}

func (f *fakeGames) ListOpen() ([]models.Game, error)       { return nil, nil }
func (f *fakeGames) ListInProgress() ([]models.Game, error) { return nil, nil }

func (f *fakeGames) Save(game *models.Game) error { return f.SaveTx(nil, game) }
func (f *fakeGames) SaveTx(_ *gorm.DB, game *models.Game) error {
	f.game = copyGame(game)
	f.saved = append(f.saved, copyGame(game))
	return nil
}

type fakeTurns struct {
	turns   map[int]*models.GameTurn
	created []*models.GameTurn
}

func (f *fakeTurns) Get(gameID string, turn int) (*models.GameTurn, error) {
	gt, ok := f.turns[turn]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *gt
	return &c, nil
}

func (f *fakeTurns) Create(turn *models.GameTurn) error { return f.CreateTx(nil, turn) }
func (f *fakeTurns) CreateTx(_ *gorm.DB, turn *models.GameTurn) error {
	f.turns[turn.Turn] = turn
	f.created = append(f.created, turn)
	return nil
}

type fakeUsers struct {
	users map[string]*models.User
	saved []*models.User
}

func (f *fakeUsers) Get(steamID string) (*models.User, error) {
	u, ok := f.users[steamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ForGame(game *models.Game) ([]*models.User, error) {
	var out []*models.User
	for i := range game.Players {
		if id := game.Players[i].SteamID; id != "" {
			out = append(out, f.users[id])
		}
	}
	return out, nil
}

func (f *fakeUsers) Save(user *models.User) error { return f.SaveTx(nil, user) }
func (f *fakeUsers) SaveTx(_ *gorm.DB, user *models.User) error {
	f.saved = append(f.saved, user)
	return nil
}

type fakePud struct {
	data map[string]*models.PrivateUserData
}

func (f *fakePud) Get(steamID string) (*models.PrivateUserData, error) {
	if p, ok := f.data[steamID]; ok {
		return p, nil
	}
	return &models.PrivateUserData{SteamID: steamID}, nil
}

func (f *fakePud) Save(pud *models.PrivateUserData) error {
	f.data[pud.SteamID] = pud
	return nil
}

type fakeStore struct {
	blobs map[string][]byte
	puts  []string
}

func (f *fakeStore) Fetch(_ context.Context, key string) ([]byte, error) {
	if b, ok := f.blobs[key]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte) error {
	f.blobs[key] = data
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) bool {
	_, ok := f.blobs[key]
	return ok
}

func (f *fakeStore) PresignedGetURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) PresignedPutURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/put/" + key, nil
}

type fakeParser struct {
	parsed *save.ParsedSave
	calls  int
}

func (f *fakeParser) Parse(data []byte, game *models.Game) (*save.ParsedSave, error) {
	f.calls++
	return f.parsed, nil
}

type fakeNotifier struct {
	turnReady []string
	finalized []string
	defeated  []models.GamePlayer
}

func (f *fakeNotifier) TurnReady(game *models.Game, _ *models.User) {
	f.turnReady = append(f.turnReady, game.CurrentPlayerSteamID)
}

func (f *fakeNotifier) Finalized(game *models.Game) {
	f.finalized = append(f.finalized, game.ID)
}

func (f *fakeNotifier) PlayersDefeated(_ *models.Game, _ []*models.User, defeated []models.GamePlayer) {
	f.defeated = append(f.defeated, defeated...)
}

// --- fixtures ---

type fixture struct {
	svc      *TurnService
	games    *fakeGames
	turns    *fakeTurns
	users    *fakeUsers
	pud      *fakePud
	store    *fakeStore
	parser   *fakeParser
	notifier *fakeNotifier
}

func newFixture() *fixture {
	game := &models.Game{
		ID:                   "game-1",
		DisplayName:          "Test Game",
		GameType:             metadata.Civ6.ID,
		GameSpeed:            "Standard",
		Slots:                2,
		Humans:               2,
		DLC:                  models.StringList{},
		InProgress:           true,
		CurrentPlayerSteamID: "steam-p1",
		Round:                3,
		GameTurnRangeKey:     7,
		Players: []models.GamePlayer{
			{ID: "gp-0", GameID: "game-1", Slot: 0, SteamID: "steam-p1", CivType: "LEADER_TRAJAN"},
			{ID: "gp-1", GameID: "game-1", Slot: 1, SteamID: "steam-p2", CivType: "LEADER_CLEOPATRA"},
		},
	}

	f := &fixture{
		games: &fakeGames{game: game},
		turns: &fakeTurns{turns: map[int]*models.GameTurn{
			7: {GameID: "game-1", Turn: 7, Round: 3, PlayerSteamID: "steam-p1", StartDate: testNow.Add(-30 * time.Minute)},
		}},
		users: &fakeUsers{users: map[string]*models.User{
			"steam-p1": {SteamID: "steam-p1", DisplayName: "Player One"},
			"steam-p2": {SteamID: "steam-p2", DisplayName: "Player Two"},
		}},
		pud:   &fakePud{data: map[string]*models.PrivateUserData{}},
		store: &fakeStore{blobs: map[string][]byte{}},
		parser: &fakeParser{parsed: &save.ParsedSave{
			CivData: []save.CivData{
				{LeaderName: "LEADER_TRAJAN", Type: save.ActorHuman},
				{LeaderName: "LEADER_CLEOPATRA", Type: save.ActorHuman, IsCurrentTurn: true},
			},
			DLCs:      []string{},
			GameTurn:  3,
			GameSpeed: "Standard",
		}},
		notifier: &fakeNotifier{},
	}

	f.store.blobs[storage.SaveKey("game-1", 8)] = []byte("uploaded save bytes")

	f.svc = NewTurnService(nil, f.games, f.turns, f.users, f.pud, f.store, f.parser, f.notifier, f.notifier)
	f.svc.now = func() time.Time { return testNow }
	return f
}

// --- tests ---

func TestFinishSubmitAccepted(t *testing.T) {
	f := newFixture()

	game, err := f.svc.finishSubmit(context.Background(), "game-1", "steam-p1", "203.0.113.7")
	if err != nil {
		t.Fatalf("finishSubmit() error = %v", err)
	}

	if game.GameTurnRangeKey != 8 {
		t.Errorf("turn sequence = %d, want 8", game.GameTurnRangeKey)
	}
	if game.CurrentPlayerSteamID != "steam-p2" {
		t.Errorf("active player = %s, want steam-p2", game.CurrentPlayerSteamID)
	}
	if game.Round != 3 {
		t.Errorf("round = %d, want 3", game.Round)
	}

	if len(f.turns.created) != 1 {
		t.Fatalf("turns created = %d, want 1", len(f.turns.created))
	}
	created := f.turns.created[0]
	if created.Turn != 8 || created.Round != 3 || created.PlayerSteamID != "steam-p2" {
		t.Errorf("bad turn record: %+v", created)
	}

	if len(f.users.saved) != 1 || f.users.saved[0].SteamID != "steam-p1" {
		t.Fatalf("submitter stats not saved: %+v", f.users.saved)
	}
	stats := f.users.saved[0]
	if stats.TurnsPlayed != 1 || stats.FastTurns != 1 {
		t.Errorf("stats = played %d fast %d, want 1/1", stats.TurnsPlayed, stats.FastTurns)
	}

	if len(f.notifier.turnReady) != 1 || f.notifier.turnReady[0] != "steam-p2" {
		t.Errorf("turn-ready notifications = %v", f.notifier.turnReady)
	}
	if len(f.notifier.finalized) != 0 {
		t.Errorf("unexpected finalize: %v", f.notifier.finalized)
	}

	if f.pud.data["steam-p1"] == nil || f.pud.data["steam-p1"].LastTurnIPAddress != "203.0.113.7" {
		t.Errorf("last turn IP not recorded: %+v", f.pud.data["steam-p1"])
	}
}

func TestFinishSubmitRejectionPersistsNothing(t *testing.T) {
	f := newFixture()
	f.parser.parsed.GameSpeed = "Quick" // speed mismatch

	_, err := f.svc.finishSubmit(context.Background(), "game-1", "steam-p1", "203.0.113.7")
	r := engine.AsRejection(err)
	if r == nil || r.Kind != engine.RejectGameSpeed {
		t.Fatalf("expected speed rejection, got %v", err)
	}

	if len(f.games.saved) != 0 || len(f.turns.created) != 0 || len(f.users.saved) != 0 {
		t.Error("state persisted despite rejection")
	}
	if len(f.notifier.turnReady)+len(f.notifier.finalized)+len(f.notifier.defeated) != 0 {
		t.Error("notifications fired despite rejection")
	}
	if f.games.game.Round != 3 || f.games.game.GameTurnRangeKey != 7 {
		t.Error("stored game changed on rejection")
	}

	// Same blob again: same rejection, still no mutation.
	_, err2 := f.svc.finishSubmit(context.Background(), "game-1", "steam-p1", "203.0.113.7")
	if r2 := engine.AsRejection(err2); r2 == nil || r2.Kind != r.Kind {
		t.Errorf("rejection not idempotent: %v", err2)
	}
}

func TestFinishSubmitNotYourTurn(t *testing.T) {
	f := newFixture()

	_, err := f.svc.finishSubmit(context.Background(), "game-1", "steam-p2", "203.0.113.7")
	if r := engine.AsRejection(err); r == nil || r.Kind != engine.RejectNotYourTurn {
		t.Fatalf("expected not-your-turn rejection, got %v", err)
	}
	if f.parser.calls != 0 {
		t.Error("save parsed despite ownership failure")
	}
}

func TestFinishSubmitDefeatAndFinalize(t *testing.T) {
	f := newFixture()
	// P2's civ died this turn: P1 is the only human left, the game
	// completes, the defeat handler and the one-shot finalize both fire.
	f.parser.parsed = &save.ParsedSave{
		CivData: []save.CivData{
			{LeaderName: "LEADER_TRAJAN", Type: save.ActorHuman, IsCurrentTurn: true},
			{LeaderName: "LEADER_CLEOPATRA", Type: save.ActorDead},
		},
		DLCs:      []string{},
		GameTurn:  4,
		GameSpeed: "Standard",
	}

	game, err := f.svc.finishSubmit(context.Background(), "game-1", "steam-p1", "203.0.113.7")
	if err != nil {
		t.Fatalf("finishSubmit() error = %v", err)
	}

	if !game.Completed || !game.Finalized {
		t.Fatalf("game should be completed+finalized: %+v", game)
	}
	if len(f.notifier.defeated) != 1 || f.notifier.defeated[0].SteamID != "steam-p2" {
		t.Errorf("defeat handler calls = %+v", f.notifier.defeated)
	}
	if len(f.notifier.finalized) != 1 {
		t.Fatalf("finalize notifications = %d, want 1", len(f.notifier.finalized))
	}
	if len(f.notifier.turnReady) != 0 {
		t.Error("turn-ready fired on the finalizing submission")
	}

	p := game.Players[1]
	if !p.HasSurrendered || p.SurrenderDate == nil {
		t.Errorf("player not surrendered: %+v", p)
	}
}

func TestFinishSubmitGzippedUploadWithRealParser(t *testing.T) {
	f := newFixture()
	f.svc.Parser = &save.JSONParser{}

	manifest := `{
		"civs": [
			{"leader_name": "LEADER_TRAJAN", "type": "HUMAN"},
			{"leader_name": "LEADER_CLEOPATRA", "type": "HUMAN", "is_current_turn": true}
		],
		"dlcs": [],
		"game_turn": 3,
		"game_speed": "Standard"
	}`
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(manifest)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	f.store.blobs[storage.SaveKey("game-1", 8)] = buf.Bytes()

	game, err := f.svc.finishSubmit(context.Background(), "game-1", "steam-p1", "203.0.113.7")
	if err != nil {
		t.Fatalf("finishSubmit() error = %v", err)
	}
	if game.CurrentPlayerSteamID != "steam-p2" {
		t.Errorf("active player = %s, want steam-p2", game.CurrentPlayerSteamID)
	}
}

func TestFinishSubmitMissingGame(t *testing.T) {
	f := newFixture()

	_, err := f.svc.finishSubmit(context.Background(), "nope", "steam-p1", "203.0.113.7")
	if err == nil || engine.AsRejection(err) != nil {
		t.Fatalf("missing game must be a hard failure, got %v", err)
	}
}

func TestMaybeSkipTurn(t *testing.T) {
	f := newFixture()
	f.games.game.TurnTimerMinutes = 10
	f.games.game.TurnTimerVacationHandling = models.VacationSkipAfterTimer
	f.store.blobs[storage.SaveKey("game-1", 7)] = []byte("current save")
	game := f.games.game

	// Turn started 30 minutes ago (fixture), timer is 10: skip.
	if err := f.svc.maybeSkipTurn(context.Background(), copyGame(game), testNow); err != nil {
		t.Fatalf("maybeSkipTurn() error = %v", err)
	}

	if f.games.game.CurrentPlayerSteamID != "steam-p2" {
		t.Errorf("active player = %s, want steam-p2", f.games.game.CurrentPlayerSteamID)
	}
	if f.games.game.GameTurnRangeKey != 8 {
		t.Errorf("turn sequence = %d, want 8", f.games.game.GameTurnRangeKey)
	}
	if string(f.store.blobs[storage.SaveKey("game-1", 8)]) != "current save" {
		t.Error("save not carried over to the next turn key")
	}
	if f.users.users["steam-p1"].TurnsSkipped != 1 {
		t.Errorf("turnsSkipped = %d, want 1", f.users.users["steam-p1"].TurnsSkipped)
	}
	if len(f.notifier.turnReady) != 1 {
		t.Errorf("turn-ready notifications = %v", f.notifier.turnReady)
	}
}

func TestMaybeSkipTurnPausedForVacation(t *testing.T) {
	f := newFixture()
	f.games.game.TurnTimerMinutes = 10
	f.games.game.TurnTimerVacationHandling = models.VacationPause
	f.users.users["steam-p1"].VacationMode = true
	f.store.blobs[storage.SaveKey("game-1", 7)] = []byte("current save")

	if err := f.svc.maybeSkipTurn(context.Background(), copyGame(f.games.game), testNow); err != nil {
		t.Fatalf("maybeSkipTurn() error = %v", err)
	}
	if f.games.game.CurrentPlayerSteamID != "steam-p1" {
		t.Error("vacationing player skipped despite PAUSE policy")
	}
}
