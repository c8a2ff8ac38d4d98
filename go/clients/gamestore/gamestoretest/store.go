// Package gamestoretest runs an in-memory game store behind an httptest server.
package gamestoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/mcdev12/engagements/go/internal/models"
)

// Call labels counted by the store.
const (
	CallStateRead     = "state.read"
	CallStateWrite    = "state.write"
	CallStartQuestion = "start-question"
	CallScores        = "scores"
	CallAnswerWrite   = "answers.write"
	CallAnswerRead    = "answers.read"
	CallVoteWrite     = "votes.write"
	CallVoteRead      = "votes.read"
	CallPartialWrite  = "partial-votes.write"
	CallSummaryRead   = "summary.read"
	CallTrigger       = "enrichment.trigger"
)

type session struct {
	snapshot     models.Snapshot
	participants []models.Participant
	answers      map[string][]models.Answer
	votes        map[string][]models.Vote
	partial      map[string]models.PartialVote
	summaries    map[string]models.EnrichmentResult
	starts       []models.QuestionStart
}

// Store is a fake game store. The zero value is not usable; call New.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*session
	questions map[string][]models.Question
	calls     map[string]int
	server    *httptest.Server

	// OnTrigger runs after an enrichment trigger is accepted.
	OnTrigger func(sessionID string, questionNumbers []string)
	// OnChange runs after every accepted write with the kind of resource written.
	OnChange func(sessionID, kind, questionNumber string)
}

func New(t testing.TB) *Store {
	s := &Store{
		sessions:  make(map[string]*session),
		questions: make(map[string][]models.Question),
		calls:     make(map[string]int),
	}
	s.server = httptest.NewServer(s.routes())
	t.Cleanup(s.server.Close)
	return s
}

func (s *Store) URL() string {
	return s.server.URL
}

func (s *Store) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}/state", s.handleGetState)
	mux.HandleFunc("POST /sessions/{id}/state", s.handleWriteState)
	mux.HandleFunc("POST /sessions/{id}/start-question", s.handleStartQuestion)
	mux.HandleFunc("GET /sessions/{id}/participants", s.handleListParticipants)
	mux.HandleFunc("POST /sessions/{id}/participants", s.handleJoin)
	mux.HandleFunc("GET /sessions/{id}/answers", s.handleListAnswers)
	mux.HandleFunc("POST /sessions/{id}/answers", s.handleSubmitAnswer)
	mux.HandleFunc("GET /sessions/{id}/votes", s.handleListVotes)
	mux.HandleFunc("POST /sessions/{id}/votes", s.handleSubmitVote)
	mux.HandleFunc("POST /sessions/{id}/scores", s.handleScores)
	mux.HandleFunc("GET /sessions/{id}/partial-votes", s.handleGetPartial)
	mux.HandleFunc("POST /sessions/{id}/partial-votes", s.handleSavePartial)
	mux.HandleFunc("GET /sessions/{id}/summary/{qn}", s.handleGetSummary)
	mux.HandleFunc("POST /admin/enrichment/{id}", s.handleTrigger)
	mux.HandleFunc("GET /question-sets/{setId}/questions", s.handleQuestions)
	return mux
}

// Seed creates or replaces a session.
func (s *Store) Seed(snap models.Snapshot, participants ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(snap.SessionID)
	sess.snapshot = snap.Clone()
	for _, name := range participants {
		sess.join(name)
	}
}

func (s *Store) AddQuestions(setID string, qs ...models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		q.SetID = setID
		s.questions[setID] = append(s.questions[setID], q)
	}
}

func (s *Store) AddAnswer(sessionID string, a models.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	sess.answers[a.QuestionNumber] = append(sess.answers[a.QuestionNumber], a)
}

func (s *Store) AddVote(sessionID string, v models.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	sess.votes[v.QuestionNumber] = append(sess.votes[v.QuestionNumber], v)
}

// CompleteEnrichment stores a generated result as the backend would.
func (s *Store) CompleteEnrichment(sessionID string, result models.EnrichmentResult) {
	s.mu.Lock()
	s.session(sessionID).summaries[result.QuestionNumber] = result
	s.mu.Unlock()
	s.changed(sessionID, "enrichment", result.QuestionNumber)
}

func (s *Store) Snapshot(sessionID string) models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sessionID).snapshot.Clone()
}

func (s *Store) Scores(sessionID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, p := range s.session(sessionID).participants {
		out[p.Name] = p.Score
	}
	return out
}

func (s *Store) Starts(sessionID string) []models.QuestionStart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.session(sessionID).starts)
}

// Calls returns how many times the labelled endpoint was hit.
func (s *Store) Calls(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[label]
}

// Writes returns the number of mutating calls, excluding enrichment triggers.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[CallStateWrite] + s.calls[CallStartQuestion] + s.calls[CallScores]
}

func (s *Store) session(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{
			snapshot:  models.Snapshot{SessionID: id, Phase: models.PhaseWaiting},
			answers:   make(map[string][]models.Answer),
			votes:     make(map[string][]models.Vote),
			partial:   make(map[string]models.PartialVote),
			summaries: make(map[string]models.EnrichmentResult),
		}
		s.sessions[id] = sess
	}
	return sess
}

func (sess *session) join(name string) models.JoinResult {
	for _, p := range sess.participants {
		if p.Name == name {
			return models.JoinResult{Participant: p, Rejoined: true}
		}
	}
	p := models.Participant{Name: name}
	sess.participants = append(sess.participants, p)
	return models.JoinResult{Participant: p}
}

func (s *Store) count(label string) {
	s.mu.Lock()
	s.calls[label]++
	s.mu.Unlock()
}

func (s *Store) changed(sessionID, kind, qn string) {
	if s.OnChange != nil {
		s.OnChange(sessionID, kind, qn)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
