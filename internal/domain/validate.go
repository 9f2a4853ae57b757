package domain

import (
	"fmt"
	"strings"
)

// Validate checks a submission in a fixed order so the first problem reported is stable:
// option count, correct index, question text, then option text.
func (s Submission) Validate() error {
	return ValidateMCQ(s.Question, s.Options, s.CorrectIndex)
}

// ValidateMCQ enforces the record invariants shared by admission and the store.
func ValidateMCQ(question string, options []string, correctIndex int) error {
	if len(options) < MinOptions {
		return NewValidationError("options", fmt.Sprintf("must have at least %d options", MinOptions), len(options))
	}
	if len(options) > MaxOptions {
		return NewValidationError("options", fmt.Sprintf("must have at most %d options", MaxOptions), len(options))
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		return NewValidationError("correct_index", fmt.Sprintf("must be between 0 and %d", len(options)-1), correctIndex)
	}
	if strings.TrimSpace(question) == "" {
		return NewValidationError("question", "is required", question)
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return NewValidationError(fmt.Sprintf("options[%d]", i), "must not be blank", opt)
		}
	}
	return nil
}

// Normalize trims surrounding whitespace from the question and every option.
func (s Submission) Normalize() Submission {
	options := make([]string, len(s.Options))
	for i, opt := range s.Options {
		options[i] = strings.TrimSpace(opt)
	}
	return Submission{
		Question:     strings.TrimSpace(s.Question),
		Options:      options,
		CorrectIndex: s.CorrectIndex,
		Uploader:     strings.TrimSpace(s.Uploader),
	}
}
