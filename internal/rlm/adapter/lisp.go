package adapter

import (
	"fmt"
	"strings"
)

func init() {
	Register("lisp", func() Adapter { return &lispAdapter{} })
}

// lispAdapter targets the S-expression DSL Evaluator: fragments are
// fenced ```lisp``` blocks, one LCTerm expression per turn.
type lispAdapter struct{}

func (a *lispAdapter) Name() string { return "lisp" }

func (a *lispAdapter) BuildSystemPrompt(contextLength int, toolInterfaces []string, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are working over a document of %d lines.\n", contextLength)
	b.WriteString("Respond with a single S-expression inside a ```lisp``` fenced block.\n")
	b.WriteString("Available forms: (grep pattern) (filter coll lambda) (map coll lambda) (count coll) ")
	b.WriteString("(match str pattern group) (replace str from to) (split str delim index) ")
	b.WriteString("(parseInt x) (parseFloat x) (if cond then else) (classify subject (test result)... default).\n")
	if len(toolInterfaces) > 0 {
		b.WriteString("Additional tools: " + strings.Join(toolInterfaces, ", ") + "\n")
	}
	for _, h := range hints {
		b.WriteString("Hint: " + h + "\n")
	}
	b.WriteString("When you have the final answer, reply with <<<FINAL>>>your answer<<<END>>> ")
	b.WriteString("or FINAL_VAR(RESULTS) to return a bound variable.\n")
	return b.String()
}

func (a *lispAdapter) ExtractCode(response string) (string, bool) {
	return extractFencedCode(response, "lisp", "scheme", "racket")
}

func (a *lispAdapter) ExtractFinalAnswer(response string) (FinalAnswer, bool) {
	return extractFinalAnswer(response)
}

func (a *lispAdapter) GetNoCodeFeedback() string {
	return "No S-expression fragment found. Respond with a single form in a ```lisp``` block, or a final answer."
}

func (a *lispAdapter) GetErrorFeedback(err error, code string) string {
	return fmt.Sprintf("Evaluating `%s` failed: %s. Adjust the expression and try again.", strings.TrimSpace(code), err)
}

func (a *lispAdapter) GetSuccessFeedback(resultCount, priorCount int) string {
	msg := fmt.Sprintf("Evaluated successfully: %d result(s).", resultCount)
	if priorCount >= 0 && resultCount == 0 && priorCount > 0 {
		msg += " The filter removed every remaining element — consider loosening the condition."
	}
	return msg
}

func (a *lispAdapter) GetRepeatedCodeFeedback(resultCount int) string {
	return fmt.Sprintf("That is the same expression as last turn (still %d result(s)). Try a different approach.", resultCount)
}
