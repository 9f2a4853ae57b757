// Package command turns chat-style upload text into submissions.
//
// The format is "question SEP option1 SEP option2 ... SEP n" where n is the 1-based number of the
// correct option. SEP is the first of "||", "|" or "," that occurs in the text.
package command

import (
	"strconv"
	"strings"

	"mcq-queue-service/internal/domain"
)

// Separators in the order they are tried.
var Separators = []string{"||", "|", ","}

// Usage is the help text shown to chat users.
const Usage = "Send MCQs in the format:\n\n" +
	"Question? || Option 1 || Option 2 || Option 3 || CorrectOptionNumber\n\n" +
	"A single | or a comma also works as separator. The last field is the number of the correct option, starting at 1."

// LooksLikeUpload reports whether plain text should be treated as an implicit upload.
func LooksLikeUpload(text string) bool {
	return strings.Contains(text, "|")
}

// Parse splits text into a submission. Tokens are trimmed and empty ones dropped; the first is the
// question, the last the correct option number and everything in between the options.
func Parse(text, uploader string) (domain.Submission, error) {
	tokens := split(text)
	if len(tokens) < 3 {
		return domain.Submission{}, domain.NewValidationError("options",
			"expected: question, at least two options and the correct option number", len(tokens))
	}

	question := tokens[0]
	options := tokens[1 : len(tokens)-1]
	raw := tokens[len(tokens)-1]

	n, err := strconv.Atoi(raw)
	if err != nil {
		return domain.Submission{}, domain.NewValidationError("correct_index", "must be a whole number", raw)
	}
	return domain.Submission{
		Question:     question,
		Options:      options,
		CorrectIndex: n - 1,
		Uploader:     uploader,
	}, nil
}

func split(text string) []string {
	text = strings.TrimSpace(text)
	sep := ""
	for _, s := range Separators {
		if strings.Contains(text, s) {
			sep = s
			break
		}
	}
	if sep == "" {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var tokens []string
	for _, part := range strings.Split(text, sep) {
		if part = strings.TrimSpace(part); part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}
