package machine

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/mcdev12/engagements/go/internal/game"
	"github.com/mcdev12/engagements/go/internal/models"
)

// Draw picks a random question whose id is not in used and whose category is in
// categories. An empty categories list accepts every category.
func Draw(questions []models.Question, used, categories []string, rng *rand.Rand) (models.Question, error) {
	pool := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if slices.Contains(used, q.ID) {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, q.Category) {
			continue
		}
		pool = append(pool, q)
	}
	if len(pool) == 0 {
		return models.Question{}, fmt.Errorf("%w: %d questions, %d used, categories %v", game.ErrExhausted, len(questions), len(used), categories)
	}
	return pool[rng.IntN(len(pool))], nil
}
