package models

// EnrichmentResult is the generated discussion material for a scored question.
type EnrichmentResult struct {
	QuestionNumber   string   `json:"questionNumber"`
	SummaryText      string   `json:"summaryText"`
	DiscussionTopics []string `json:"discussionTopics"`
	NextSteps        []string `json:"nextSteps"`
	DebugPrompt      string   `json:"debugPrompt,omitempty"`
}

// EnrichmentRequest asks the store to generate results for the listed question numbers.
type EnrichmentRequest struct {
	QuestionNumbers []string `json:"questionIds"`
}
