// Package inference provides an always-available question-answering
// capability over a stateful, fallible LLM backend.
package inference

import (
	"context"
	"fmt"
)

// Answer is a single inference response. Text is empty when the backend
// judged the question unanswerable from the given context.
type Answer struct {
	Text       string
	Confidence float64
}

// Backend is a stateful text-inference engine. Implementations are not
// safe for concurrent use; the Manager serializes access.
type Backend interface {
	// Init prepares the backend for use. May be slow (model load).
	Init(ctx context.Context) error
	// Ask answers a question against the given context text.
	Ask(ctx context.Context, question, contextText string) (Answer, error)
	// Ping is a cheap liveness probe used by the keep-alive.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close()
}

const askPromptTemplate = `You are extracting information from a project status update.

Status update:
%s

Question: %s

Respond with ONLY this JSON:
{"answer": "the answer drawn from the update, or an empty string if the update does not answer the question", "confidence": 0.0-1.0}`

func buildAskPrompt(question, contextText string) string {
	if len(contextText) > 4000 {
		contextText = contextText[:4000] + "..."
	}
	return fmt.Sprintf(askPromptTemplate, contextText, question)
}

// parseAnswer interprets a raw model response as an Answer. Unparseable
// responses fall back to treating the whole text as the answer.
func parseAnswer(text string) Answer {
	parsed := parseJSONResponse(text)
	if parsed == nil {
		return Answer{Text: text, Confidence: 0.5}
	}

	answer := getString(parsed, "answer", "")
	confidence := getFloat(parsed, "confidence", 0.5)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return Answer{Text: answer, Confidence: confidence}
}
