package adapter

import (
	"fmt"
	"strings"
)

func init() {
	Register("js", func() Adapter { return &jsAdapter{} })
}

// jsAdapter targets the JS Sandbox: fragments are fenced
// ```javascript```/```js```/```typescript```/```ts``` blocks. Its
// validator (internal/rlm/sandbox.Validate) is only wired in for this
// adapter's fragments, per spec.md §4.6.
type jsAdapter struct{}

func (a *jsAdapter) Name() string { return "js" }

func (a *jsAdapter) BuildSystemPrompt(contextLength int, toolInterfaces []string, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are working over a document of %d lines.\n", contextLength)
	b.WriteString("Respond with a single JavaScript fragment inside a ```javascript``` fenced block.\n")
	b.WriteString("Globals: context, __linesArray, grep(pattern), fuzzy_search(query), locate_line(needle), ")
	b.WriteString("synthesize_extractor(pairs), synthesize_regex(pairs), console.log, memory (persists across turns).\n")
	b.WriteString("Do not hand-roll string parsing with .match/.replace/.split/.filter/.map/.reduce/.find/.some/.every ")
	b.WriteString("or regex literals — call synthesize_extractor or synthesize_regex instead.\n")
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

func (a *jsAdapter) ExtractCode(response string) (string, bool) {
	return extractFencedCode(response, "javascript", "js", "typescript", "ts")
}

func (a *jsAdapter) ExtractFinalAnswer(response string) (FinalAnswer, bool) {
	return extractFinalAnswer(response)
}

func (a *jsAdapter) GetNoCodeFeedback() string {
	return "No JavaScript fragment found. Respond with a single fragment in a ```javascript``` block, or a final answer."
}

func (a *jsAdapter) GetErrorFeedback(err error, code string) string {
	return fmt.Sprintf("Running the fragment failed: %s. Revise it and try again.", err)
}

func (a *jsAdapter) GetSuccessFeedback(resultCount, priorCount int) string {
	msg := fmt.Sprintf("Ran successfully: %d result(s).", resultCount)
	if priorCount >= 0 && resultCount == 0 && priorCount > 0 {
		msg += " That narrowed the collection to empty — consider loosening the filter."
	}
	return msg
}

func (a *jsAdapter) GetRepeatedCodeFeedback(resultCount int) string {
	return fmt.Sprintf("That fragment is identical to last turn's (still %d result(s)). Try a different approach.", resultCount)
}
