package models

import (
	"maps"
	"slices"
	"strings"
)

// Question is one entry of a question set, frozen into the session when drawn.
type Question struct {
	ID            string            `json:"id"`
	SetID         string            `json:"setId"`
	Category      string            `json:"category,omitempty"`
	Title         string            `json:"title"`
	Detail        string            `json:"detail,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	Points        int               `json:"points,omitempty"`
}

func (q Question) Clone() Question {
	out := q
	out.Options = maps.Clone(q.Options)
	return out
}

// OptionLetters returns the option keys in display order.
func (q Question) OptionLetters() []string {
	letters := slices.Collect(maps.Keys(q.Options))
	slices.Sort(letters)
	return letters
}

// IsCorrect reports whether choice names the correct option. Either side may be given as
// a letter ("B"), an option key ("optionB") or the option text.
func (q Question) IsCorrect(choice string) bool {
	choice = strings.TrimSpace(choice)
	correct := strings.TrimSpace(q.CorrectAnswer)
	if choice == "" || correct == "" {
		return false
	}
	if strings.EqualFold(choice, correct) {
		return true
	}
	return q.resolve(choice) == q.resolve(correct)
}

// resolve maps a letter or option key to the option text when the question has one.
func (q Question) resolve(v string) string {
	letter := strings.TrimPrefix(v, "option")
	if text, ok := q.Options[letter]; ok {
		return text
	}
	if len(letter) == 1 {
		return strings.ToUpper(letter)
	}
	return v
}
