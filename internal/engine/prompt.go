package engine

import (
	"fmt"
	"strings"
)

const writerSystemPrompt = "You write graded reading passages for language learners. " +
	"Respond with the passage text only, no preamble and no commentary."

func draftPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a reading passage in %s about %q for a %s-level learner.",
		req.Language, req.Topic, req.Level)
	if req.Length != "" {
		fmt.Fprintf(&b, " Target length: about %s words.", req.Length)
	}
	if len(req.VocabularyHint) > 0 {
		fmt.Fprintf(&b, " Prefer vocabulary the learner already knows where it fits naturally: %s.",
			strings.Join(req.VocabularyHint, ", "))
	}
	return b.String()
}

func revisePrompt(req Request, draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revise the following %s passage so it reads naturally at %s level. ",
		req.Language, req.Level)
	b.WriteString("Fix grammar, keep the topic and length, and do not add headings.\n\n")
	b.WriteString(draft)
	return b.String()
}
