// Package gamestore is the HTTP client for the game store that owns every durable
// session record.
package gamestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/clients"
	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/models"
)

type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string) *Client {
	return &Client{BaseClient: clients.NewBaseClient(baseURL)}
}

// scoresRequest is the body of the score increment call.
type scoresRequest struct {
	QuestionNumber string         `json:"questionNumber"`
	Scores         map[string]int `json:"scores"`
}

type joinRequest struct {
	Name string `json:"name"`
}

// mapStatus translates store status codes into the game error values and logs the
// failure. Absent records and rejected duplicates are expected and only logged at debug.
func mapStatus(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var se *clients.StatusError
	if !errors.As(err, &se) {
		log.Warn().Err(err).Msg("Game store request failed")
		return err
	}

	logger := log.With().
		Str("method", se.Method).
		Str("path", se.Path).
		Int("status", se.Code).
		Logger()
	switch se.Code {
	case http.StatusNotFound:
		logger.Debug().Msg("Game store record not found")
		return fmt.Errorf("%w: %s", game.ErrNotFound, se.Path)
	case http.StatusConflict:
		logger.Debug().Str("response", se.Body).Msg("Game store rejected submission")
		return fmt.Errorf("%w: %s", game.ErrSubmission, se.Body)
	}
	logger.Warn().Str("response", se.Body).Msg("Game store request failed")
	return err
}

func (c *Client) GetState(ctx context.Context, sessionID string) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.GetJSON(ctx, sessionPath(sessionID, "state"), &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to get state for %s: %w", sessionID, mapStatus(err))
	}
	if snap.SessionID == "" {
		snap.SessionID = sessionID
	}
	return snap, nil
}

func (c *Client) WriteState(ctx context.Context, snap models.Snapshot) error {
	if err := c.PostJSON(ctx, sessionPath(snap.SessionID, "state"), snap, nil); err != nil {
		return fmt.Errorf("failed to write state for %s: %w", snap.SessionID, mapStatus(err))
	}
	return nil
}

func (c *Client) StartQuestion(ctx context.Context, sessionID string, start models.QuestionStart) error {
	if err := c.PostJSON(ctx, sessionPath(sessionID, "start-question"), start, nil); err != nil {
		return fmt.Errorf("failed to start question %s: %w", start.QuestionNumber, mapStatus(err))
	}
	return nil
}

func (c *Client) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	var out []models.Participant
	if err := c.GetJSON(ctx, sessionPath(sessionID, "participants"), &out); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", mapStatus(err))
	}
	return out, nil
}

// Join registers name in the session. Joining with an existing name rejoins and keeps
// the score.
func (c *Client) Join(ctx context.Context, sessionID, name string) (models.JoinResult, error) {
	var out models.JoinResult
	if err := c.PostJSON(ctx, sessionPath(sessionID, "participants"), joinRequest{Name: name}, &out); err != nil {
		return models.JoinResult{}, fmt.Errorf("failed to join as %s: %w", name, mapStatus(err))
	}
	return out, nil
}

func (c *Client) ListAnswers(ctx context.Context, sessionID, questionNumber string) ([]models.Answer, error) {
	var out []models.Answer
	path := withQuery(sessionPath(sessionID, "answers"), map[string]string{"questionNumber": questionNumber})
	if err := c.GetJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to list answers for %s: %w", questionNumber, mapStatus(err))
	}
	return out, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, answer models.Answer) error {
	if err := c.PostJSON(ctx, sessionPath(sessionID, "answers"), answer, nil); err != nil {
		return fmt.Errorf("failed to submit answer: %w", mapStatus(err))
	}
	return nil
}

func (c *Client) ListVotes(ctx context.Context, sessionID, questionNumber string) ([]models.Vote, error) {
	var out []models.Vote
	path := withQuery(sessionPath(sessionID, "votes"), map[string]string{"questionNumber": questionNumber})
	if err := c.GetJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to list votes for %s: %w", questionNumber, mapStatus(err))
	}
	return out, nil
}

func (c *Client) SubmitVote(ctx context.Context, sessionID string, vote models.Vote) error {
	if err := c.PostJSON(ctx, sessionPath(sessionID, "votes"), vote, nil); err != nil {
		return fmt.Errorf("failed to submit vote: %w", mapStatus(err))
	}
	return nil
}

// ApplyScores adds each delta to the participant's score.
func (c *Client) ApplyScores(ctx context.Context, sessionID, questionNumber string, deltas map[string]int) error {
	body := scoresRequest{QuestionNumber: questionNumber, Scores: deltas}
	if err := c.PostJSON(ctx, sessionPath(sessionID, "scores"), body, nil); err != nil {
		return fmt.Errorf("failed to apply scores for %s: %w", questionNumber, mapStatus(err))
	}
	return nil
}

// GetPartialVote returns nil when no draft exists.
func (c *Client) GetPartialVote(ctx context.Context, sessionID, questionNumber, participant string) (*models.PartialVote, error) {
	var out models.PartialVote
	path := withQuery(sessionPath(sessionID, "partial-votes"), map[string]string{
		"questionNumber":  questionNumber,
		"participantName": participant,
	})
	if err := c.GetJSON(ctx, path, &out); err != nil {
		err = mapStatus(err)
		if errors.Is(err, game.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get partial vote: %w", err)
	}
	return &out, nil
}

func (c *Client) SavePartialVote(ctx context.Context, sessionID string, draft models.PartialVote) error {
	if err := c.PostJSON(ctx, sessionPath(sessionID, "partial-votes"), draft, nil); err != nil {
		return fmt.Errorf("failed to save partial vote: %w", mapStatus(err))
	}
	return nil
}

// GetSummary returns nil when nothing has been generated yet.
func (c *Client) GetSummary(ctx context.Context, sessionID, questionNumber string) (*models.EnrichmentResult, error) {
	var out models.EnrichmentResult
	path := sessionPath(sessionID, "summary/"+url.PathEscape(questionNumber))
	if err := c.GetJSON(ctx, path, &out); err != nil {
		err = mapStatus(err)
		if errors.Is(err, game.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get summary for %s: %w", questionNumber, err)
	}
	if out.QuestionNumber == "" {
		out.QuestionNumber = questionNumber
	}
	return &out, nil
}

// TriggerEnrichment asks the store to start generation. It returns once the request
// is accepted, not when the result exists.
func (c *Client) TriggerEnrichment(ctx context.Context, sessionID string, questionNumbers ...string) error {
	path := EnrichmentEndpoint + "/" + url.PathEscape(sessionID)
	body := models.EnrichmentRequest{QuestionNumbers: questionNumbers}
	if err := c.PostJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("failed to trigger enrichment: %w", mapStatus(err))
	}
	return nil
}
