package gamestoretest

import (
	"net/http"
	"slices"

	"github.com/mcdev12/engagements/go/internal/models"
)

func (s *Store) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.count(CallStateRead)
	writeJSON(w, s.Snapshot(r.PathValue("id")))
}

func (s *Store) handleWriteState(w http.ResponseWriter, r *http.Request) {
	var snap models.Snapshot
	if !decode(w, r, &snap) {
		return
	}
	id := r.PathValue("id")
	snap.SessionID = id
	s.mu.Lock()
	s.calls[CallStateWrite]++
	s.session(id).snapshot = snap.Clone()
	s.mu.Unlock()
	s.changed(id, "state", snap.CurrentQuestionNumber)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) handleStartQuestion(w http.ResponseWriter, r *http.Request) {
	var start models.QuestionStart
	if !decode(w, r, &start) {
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	s.calls[CallStartQuestion]++
	sess := s.session(id)
	sess.starts = append(sess.starts, start)
	s.mu.Unlock()
	s.changed(id, "question", start.QuestionNumber)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := slices.Clone(s.session(r.PathValue("id")).participants)
	s.mu.Unlock()
	if out == nil {
		out = []models.Participant{}
	}
	writeJSON(w, out)
}

func (s *Store) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	res := s.session(id).join(req.Name)
	s.mu.Unlock()
	s.changed(id, "participants", "")
	writeJSON(w, res)
}

func (s *Store) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	qn := r.URL.Query().Get("questionNumber")
	s.mu.Lock()
	s.calls[CallAnswerRead]++
	out := slices.Clone(s.session(r.PathValue("id")).answers[qn])
	s.mu.Unlock()
	if out == nil {
		out = []models.Answer{}
	}
	writeJSON(w, out)
}

func (s *Store) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var a models.Answer
	if !decode(w, r, &a) {
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	s.calls[CallAnswerWrite]++
	sess := s.session(id)
	for _, existing := range sess.answers[a.QuestionNumber] {
		if existing.ParticipantName == a.ParticipantName {
			s.mu.Unlock()
			http.Error(w, "answer already submitted", http.StatusConflict)
			return
		}
	}
	sess.answers[a.QuestionNumber] = append(sess.answers[a.QuestionNumber], a)
	s.mu.Unlock()
	s.changed(id, "answers", a.QuestionNumber)
	w.WriteHeader(http.StatusCreated)
}

func (s *Store) handleListVotes(w http.ResponseWriter, r *http.Request) {
	qn := r.URL.Query().Get("questionNumber")
	s.mu.Lock()
	s.calls[CallVoteRead]++
	out := slices.Clone(s.session(r.PathValue("id")).votes[qn])
	s.mu.Unlock()
	if out == nil {
		out = []models.Vote{}
	}
	writeJSON(w, out)
}

func (s *Store) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var v models.Vote
	if !decode(w, r, &v) {
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	s.calls[CallVoteWrite]++
	sess := s.session(id)
	for _, existing := range sess.votes[v.QuestionNumber] {
		if existing.VoterName == v.VoterName {
			s.mu.Unlock()
			http.Error(w, "vote already submitted", http.StatusConflict)
			return
		}
	}
	sess.votes[v.QuestionNumber] = append(sess.votes[v.QuestionNumber], v)
	delete(sess.partial, v.QuestionNumber+"/"+v.VoterName)
	s.mu.Unlock()
	s.changed(id, "votes", v.QuestionNumber)
	w.WriteHeader(http.StatusCreated)
}

func (s *Store) handleScores(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionNumber string         `json:"questionNumber"`
		Scores         map[string]int `json:"scores"`
	}
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	s.calls[CallScores]++
	sess := s.session(id)
	for name, delta := range req.Scores {
		found := false
		for i := range sess.participants {
			if sess.participants[i].Name == name {
				sess.participants[i].Score += delta
				found = true
			}
		}
		if !found {
			sess.participants = append(sess.participants, models.Participant{Name: name, Score: delta})
		}
	}
	s.mu.Unlock()
	s.changed(id, "participants", req.QuestionNumber)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) handleGetPartial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("questionNumber") + "/" + q.Get("participantName")
	s.mu.Lock()
	pv, ok := s.session(r.PathValue("id")).partial[key]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, pv)
}

func (s *Store) handleSavePartial(w http.ResponseWriter, r *http.Request) {
	var pv models.PartialVote
	if !decode(w, r, &pv) {
		return
	}
	s.mu.Lock()
	s.calls[CallPartialWrite]++
	s.session(r.PathValue("id")).partial[pv.QuestionNumber+"/"+pv.ParticipantName] = pv
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[CallSummaryRead]++
	res, ok := s.session(r.PathValue("id")).summaries[r.PathValue("qn")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, res)
}

func (s *Store) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req models.EnrichmentRequest
	if !decode(w, r, &req) {
		return
	}
	s.count(CallTrigger)
	w.WriteHeader(http.StatusAccepted)
	if s.OnTrigger != nil {
		go s.OnTrigger(r.PathValue("id"), req.QuestionNumbers)
	}
}

func (s *Store) handleQuestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := slices.Clone(s.questions[r.PathValue("setId")])
	s.mu.Unlock()
	if out == nil {
		out = []models.Question{}
	}
	writeJSON(w, out)
}
