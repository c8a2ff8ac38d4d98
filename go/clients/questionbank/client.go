// Package questionbank reads question sets from the question bank service.
package questionbank

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/engagements/go/clients"
	"github.com/mcdev12/engagements/go/internal/models"
)

const QuestionSetsEndpoint = "/question-sets"

type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string) *Client {
	return &Client{BaseClient: clients.NewBaseClient(baseURL)}
}

// ListQuestions returns every question of setID.
func (c *Client) ListQuestions(ctx context.Context, setID string) ([]models.Question, error) {
	var out []models.Question
	path := fmt.Sprintf("%s/%s/questions", QuestionSetsEndpoint, url.PathEscape(setID))
	if err := c.GetJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to list questions for set %s: %w", setID, err)
	}
	for i := range out {
		if out[i].SetID == "" {
			out[i].SetID = setID
		}
	}
	return out, nil
}
