package engine_test

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/engagements/go/clients/gamestore"
	"github.com/mcdev12/engagements/go/clients/gamestore/gamestoretest"
	"github.com/mcdev12/engagements/go/clients/questionbank"
	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/game/engine"
	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/events"
	"github.com/mcdev12/engagements/go/internal/game/mirror"
	"github.com/mcdev12/engagements/go/internal/models"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type memNames struct {
	mu    sync.Mutex
	names map[string]string
}

func (m *memNames) ParticipantName(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names[sessionID], nil
}

func (m *memNames) SetParticipantName(sessionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names == nil {
		m.names = make(map[string]string)
	}
	m.names[sessionID] = name
	return nil
}

func testConfig(sessionID string, role engine.Role) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.SessionID = sessionID
	cfg.Role = role
	cfg.Transport = engine.TransportPoll
	cfg.PollInterval = 20 * time.Millisecond
	cfg.SuppressionWindow = 500 * time.Millisecond
	cfg.Enrichment.PollInterval = 20 * time.Millisecond
	cfg.Enrichment.Timeout = 5 * time.Second
	cfg.Channel.ReconnectDelay = 5 * time.Millisecond
	cfg.Channel.MaxDelay = 10 * time.Millisecond
	cfg.Channel.MaxReconnects = 1
	return cfg
}

func startEngine(t *testing.T, store *gamestoretest.Store, cfg engine.Config, names engine.NameStore) *engine.Engine {
	t.Helper()
	client := gamestore.NewClient(store.URL())
	e := engine.New(cfg, client, questionbank.NewClient(store.URL()), names, clockwork.NewRealClock())
	e.Machine().SetRand(rand.New(rand.NewPCG(7, 7)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.NoError(t, e.WaitStarted(ctx))
	return e
}

func eventually(t *testing.T, e *engine.Engine, cond func(v mirror.View) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := e.View(context.Background())
		return err == nil && cond(v)
	}, waitFor, tick)
}

func question(id string) models.Question {
	return models.Question{
		ID:            id,
		Category:      "general",
		Title:         "Question " + id,
		Options:       map[string]string{"A": "red", "B": "blue"},
		CorrectAnswer: "B",
		Points:        10,
	}
}

func TestHostCallAndAnswerRound(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	store.AddQuestions("set-1", question("q-1"))
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting, QuestionSetID: "set-1"}, "p1", "p2")

	host := startEngine(t, store, testConfig("ROOM", engine.RoleHost), nil)
	eventually(t, host, func(v mirror.View) bool { return len(v.Participants) == 2 })

	snap, err := host.StartQuestion(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseQuestion, snap.Phase)
	assert.Equal(t, "001", snap.CurrentQuestionNumber)

	v, err := host.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseQuestion, v.Snapshot.Phase, "the local change shows before the store echoes it")

	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: "p1", Content: "a"})
	_, err = host.CloseQuestion(ctx, false)
	require.Error(t, err)
	assert.True(t, game.NeedsConfirmation(err))

	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: "p2", Content: "b"})
	eventually(t, host, func(v mirror.View) bool { return len(v.Answers) == 2 })

	snap, err = host.CloseQuestion(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVoting, snap.Phase)

	store.AddVote("ROOM", models.Vote{QuestionNumber: "001", VoterName: "p1", Rankings: map[int]int{1: 1}})
	store.AddVote("ROOM", models.Vote{QuestionNumber: "001", VoterName: "p2", Rankings: map[int]int{0: 1}})

	snap, err = host.ShowResults(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResults, snap.Phase)
	assert.Equal(t, []string{"001"}, snap.ScoredQuestions)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 3}, store.Scores("ROOM"))

	eventually(t, host, func(v mirror.View) bool {
		return len(v.Standings) == 2 && v.Standings[0].Rank == 1 && v.Standings[1].Rank == 1 &&
			v.Standings[0].Score == 3
	})

	require.Eventually(t, func() bool { return store.Calls(gamestoretest.CallTrigger) == 1 }, waitFor, tick)
	eventually(t, host, func(v mirror.View) bool { return v.Enrichment.State == enrichment.StatePending })

	store.CompleteEnrichment("ROOM", models.EnrichmentResult{QuestionNumber: "001", SummaryText: "Good round"})
	eventually(t, host, func(v mirror.View) bool {
		return v.Enrichment.State == enrichment.StateReady && v.Enrichment.Result.SummaryText == "Good round"
	})
	assert.Equal(t, 1, store.Calls(gamestoretest.CallTrigger))
	assert.Equal(t, 1, store.Calls(gamestoretest.CallScores))
}

func TestHostTriviaRound(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	store.AddQuestions("set-1", question("q-1"))
	store.Seed(models.Snapshot{
		SessionID:     "TRIV",
		Phase:         models.PhaseWaiting,
		GameType:      models.GameTypeTrivia,
		QuestionSetID: "set-1",
	}, "p1", "p2")

	host := startEngine(t, store, testConfig("TRIV", engine.RoleHost), nil)
	eventually(t, host, func(v mirror.View) bool { return len(v.Participants) == 2 })

	_, err := host.StartQuestion(ctx, nil)
	require.NoError(t, err)
	store.AddAnswer("TRIV", models.Answer{QuestionNumber: "001", ParticipantName: "p1", Content: "A"})
	store.AddAnswer("TRIV", models.Answer{QuestionNumber: "001", ParticipantName: "p2", Content: "blue"})

	snap, err := host.ShowResults(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResults, snap.Phase)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 10}, store.Scores("TRIV"))

	_, err = host.CloseQuestion(ctx, false)
	assert.ErrorIs(t, err, game.ErrIllegalTransition)
}

func TestConcurrentHostsStartOnce(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	store.AddQuestions("set-1", question("q-1"), question("q-2"))
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting, QuestionSetID: "set-1"}, "p1")

	first := startEngine(t, store, testConfig("ROOM", engine.RoleHost), nil)
	slowCfg := testConfig("ROOM", engine.RoleHost)
	slowCfg.PollInterval = time.Hour
	second := startEngine(t, store, slowCfg, nil)
	eventually(t, second, func(v mirror.View) bool { return len(v.Participants) == 1 })

	_, err := first.StartQuestion(ctx, nil)
	require.NoError(t, err)

	snap, err := second.StartQuestion(ctx, nil)
	require.NoError(t, err, "a lost race is not an error")
	assert.Equal(t, models.PhaseWaiting, snap.Phase)
	assert.Len(t, store.Starts("ROOM"), 1)

	eventually(t, second, func(v mirror.View) bool { return v.Snapshot.Phase == models.PhaseQuestion })
}

func TestParticipantAnswersAndVotes(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	q := question("q-1")
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseQuestion,
		CurrentQuestionNumber: "001",
		CurrentQuestion:       &q,
		PlayedQuestions:       []string{"001"},
		UsedQuestionRefs:      []string{"q-1"},
	})

	names := &memNames{}
	p := startEngine(t, store, testConfig("ROOM", engine.RoleParticipant), names)

	err := p.SubmitAnswer(ctx, "too early")
	assert.ErrorIs(t, err, engine.ErrNotJoined)

	res, err := p.Join(ctx, " alice ")
	require.NoError(t, err)
	assert.False(t, res.Rejoined)
	remembered, _ := names.ParticipantName("ROOM")
	assert.Equal(t, "alice", remembered)

	eventually(t, p, func(v mirror.View) bool { return v.Snapshot.Phase == models.PhaseQuestion })
	require.NoError(t, p.SubmitAnswer(ctx, "my answer"))
	assert.ErrorIs(t, p.SubmitAnswer(ctx, "again"), game.ErrSubmission)

	_, err = p.StartQuestion(ctx, nil)
	assert.ErrorIs(t, err, engine.ErrRole)

	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: "bob", Content: "b"})
	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: "carol", Content: "c"})
	voting := store.Snapshot("ROOM")
	voting.Phase = models.PhaseVoting
	store.Seed(voting, "bob", "carol")

	eventually(t, p, func(v mirror.View) bool {
		return v.Snapshot.Phase == models.PhaseVoting && len(v.Answers) == 3
	})

	_, err = p.SetRank(ctx, 0, 1)
	require.NoError(t, err)
	_, err = p.SetRank(ctx, 1, 2)
	require.NoError(t, err)
	draft, err := p.SetRank(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1}, draft, "a rank moves to the newly ranked answer")

	_, err = p.SetRank(ctx, 5, 1)
	assert.Error(t, err)

	assert.Error(t, p.SubmitVote(ctx), "an incomplete ranking is rejected")

	_, err = p.SetRank(ctx, 0, 2)
	require.NoError(t, err)
	_, err = p.SetRank(ctx, 2, 3)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return store.Calls(gamestoretest.CallPartialWrite) >= 1 }, waitFor, tick)

	require.NoError(t, p.SubmitVote(ctx))
	eventually(t, p, func(v mirror.View) bool { return len(v.Votes) == 1 && len(v.Draft) == 0 })
	assert.ErrorIs(t, p.SubmitVote(ctx), game.ErrSubmission)
}

func TestParticipantRestoresDraft(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseVoting,
		CurrentQuestionNumber: "002",
		PlayedQuestions:       []string{"001", "002"},
		ScoredQuestions:       []string{"001"},
	}, "alice", "bob")
	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "002", ParticipantName: "alice", Content: "a"})
	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "002", ParticipantName: "bob", Content: "b"})
	require.NoError(t, gamestore.NewClient(store.URL()).SavePartialVote(ctx, "ROOM", models.PartialVote{
		QuestionNumber:  "002",
		ParticipantName: "alice",
		Rankings:        map[int]int{1: 1},
	}))

	names := &memNames{names: map[string]string{"ROOM": "alice"}}
	p := startEngine(t, store, testConfig("ROOM", engine.RoleParticipant), names)

	eventually(t, p, func(v mirror.View) bool {
		return v.Self == "alice" && v.Draft[1] == 1
	})
}

func TestResultsWithoutAnswersSkipsEnrichment(t *testing.T) {
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseResults,
		CurrentQuestionNumber: "001",
		PlayedQuestions:       []string{"001"},
		ScoredQuestions:       []string{"001"},
	}, "p1")

	host := startEngine(t, store, testConfig("ROOM", engine.RoleHost), nil)
	eventually(t, host, func(v mirror.View) bool { return v.Snapshot.Phase == models.PhaseResults })
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, store.Calls(gamestoretest.CallTrigger))
	v, err := host.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enrichment.State(""), v.Enrichment.State)
}

func TestPushFallsBackToPolling(t *testing.T) {
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting}, "p1")

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(relay.Close)

	cfg := testConfig("ROOM", engine.RoleParticipant)
	cfg.Transport = engine.TransportPush
	cfg.Channel.URL = "ws" + strings.TrimPrefix(relay.URL, "http")
	e := startEngine(t, store, cfg, nil)

	eventually(t, e, func(v mirror.View) bool {
		return v.Transport == string(engine.TransportPoll) && v.Connected && len(v.Participants) == 1
	})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func TestPushSignalTriggersRefresh(t *testing.T) {
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting}, "p1")

	conns := make(chan *websocket.Conn, 1)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(relay.Close)

	cfg := testConfig("ROOM", engine.RoleParticipant)
	cfg.PollInterval = time.Hour
	cfg.Channel.URL = "ws" + strings.TrimPrefix(relay.URL, "http")
	e := startEngine(t, store, cfg, nil)

	e.SetTransport(engine.TransportPush)
	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(waitFor):
		t.Fatal("channel never connected")
	}
	eventually(t, e, func(v mirror.View) bool {
		return v.Transport == string(engine.TransportPush) && v.Connected
	})

	q := question("q-1")
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseQuestion,
		CurrentQuestionNumber: "001",
		CurrentQuestion:       &q,
		PlayedQuestions:       []string{"001"},
	})
	frame, err := events.NewMessage(events.TypeStateChanged, events.Notification{SessionID: "ROOM"}).Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	eventually(t, e, func(v mirror.View) bool {
		return v.Snapshot.Phase == models.PhaseQuestion && v.Derived.Ordinal == 1
	})
}

func TestUpdatesPublishesLatestView(t *testing.T) {
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{SessionID: "ROOM", Phase: models.PhaseWaiting}, "p1", "p2")

	e := startEngine(t, store, testConfig("ROOM", engine.RoleParticipant), nil)

	deadline := time.After(waitFor)
	for {
		select {
		case v, ok := <-e.Updates():
			require.True(t, ok)
			if len(v.Participants) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("no view with participants published")
		}
	}
}

// slowFirstSave delays the first partial vote save so later saves could overtake it.
type slowFirstSave struct {
	*gamestore.Client
	mu    sync.Mutex
	saves int
}

func (s *slowFirstSave) SavePartialVote(ctx context.Context, sessionID string, draft models.PartialVote) error {
	s.mu.Lock()
	s.saves++
	first := s.saves == 1
	s.mu.Unlock()
	if first {
		time.Sleep(100 * time.Millisecond)
	}
	return s.Client.SavePartialVote(ctx, sessionID, draft)
}

func TestPartialVoteSavesKeepLatestDraft(t *testing.T) {
	ctx := context.Background()
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseVoting,
		CurrentQuestionNumber: "001",
		PlayedQuestions:       []string{"001"},
	}, "alice", "bob", "carol")
	for _, name := range []string{"alice", "bob", "carol"} {
		store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: name, Content: name})
	}

	client := gamestore.NewClient(store.URL())
	cfg := testConfig("ROOM", engine.RoleParticipant)
	cfg.ParticipantName = "alice"
	p := engine.New(cfg, &slowFirstSave{Client: client}, questionbank.NewClient(store.URL()), nil, clockwork.NewRealClock())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.NoError(t, p.WaitStarted(runCtx))
	eventually(t, p, func(v mirror.View) bool {
		return v.Snapshot.Phase == models.PhaseVoting && len(v.Answers) == 3
	})

	for pos, rank := range []int{1, 2, 3} {
		_, err := p.SetRank(ctx, pos, rank)
		require.NoError(t, err)
	}
	want := map[int]int{0: 1, 1: 2, 2: 3}

	require.Eventually(t, func() bool {
		pv, err := client.GetPartialVote(ctx, "ROOM", "001", "alice")
		return err == nil && pv != nil && assert.ObjectsAreEqual(want, pv.Rankings)
	}, waitFor, tick)

	time.Sleep(150 * time.Millisecond)
	pv, err := client.GetPartialVote(ctx, "ROOM", "001", "alice")
	require.NoError(t, err)
	require.NotNil(t, pv)
	assert.Equal(t, want, pv.Rankings, "an older draft must not overwrite the newest one")
}

func TestParticipantPollsForLateEnrichment(t *testing.T) {
	store := gamestoretest.New(t)
	store.Seed(models.Snapshot{
		SessionID:             "ROOM",
		Phase:                 models.PhaseResults,
		CurrentQuestionNumber: "001",
		PlayedQuestions:       []string{"001"},
		ScoredQuestions:       []string{"001"},
	}, "alice")
	store.AddAnswer("ROOM", models.Answer{QuestionNumber: "001", ParticipantName: "alice", Content: "a"})

	names := &memNames{names: map[string]string{"ROOM": "alice"}}
	p := startEngine(t, store, testConfig("ROOM", engine.RoleParticipant), names)
	eventually(t, p, func(v mirror.View) bool { return v.Enrichment.State == enrichment.StatePending })

	store.CompleteEnrichment("ROOM", models.EnrichmentResult{QuestionNumber: "001", SummaryText: "Late summary"})
	eventually(t, p, func(v mirror.View) bool {
		return v.Enrichment.State == enrichment.StateReady && v.Enrichment.Result.SummaryText == "Late summary"
	})
	assert.Zero(t, store.Calls(gamestoretest.CallTrigger), "participants never trigger generation")
}
