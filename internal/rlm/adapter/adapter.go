// Package adapter implements the Adapter Contract (spec.md §4.7): the
// six-function capability record an orchestrator turn uses to build
// prompts and parse a model's response, a name-keyed registry with
// pattern-based auto-detection on model name, and the two concrete
// adapters the core ships (lisp, js). Grounded on the teacher's
// internal/llm/factory.go dispatch-by-name shape and
// internal/config/config.go's InferProviderType pattern-matching
// auto-detection.
package adapter

import "strings"

// FinalAnswer is what extractFinalAnswer returns: either free text, or
// a reference to a binding the caller must resolve.
type FinalAnswer struct {
	Text    string
	IsVar   bool
	VarName string
}

// Bindings renders the current binding set for prompt assembly; the
// orchestrator owns the actual map; adapters only format it.
type Bindings map[string]string

// Adapter is one code-writing convention's capability record. The
// orchestrator calls these in the fixed order the turn loop needs:
// build the prompt, try extractFinalAnswer, else extractCode, and on
// failure/success render feedback with the Get*Feedback calls.
type Adapter interface {
	// Name identifies the adapter for registry lookup and logging.
	Name() string

	// BuildSystemPrompt assembles the system prompt for a turn.
	// toolInterfaces documents the callable primitives (grep, filter,
	// synthesize_extractor, ...) available in this adapter's executor.
	BuildSystemPrompt(contextLength int, toolInterfaces []string, hints []string) string

	// ExtractCode returns the first fenced code fragment this
	// adapter's language tag introduces, or ("", false) if none.
	ExtractCode(response string) (string, bool)

	// ExtractFinalAnswer parses the final-answer protocol
	// (spec.md §6): `<<<FINAL>>>...<<<END>>>` takes precedence over
	// `FINAL_VAR(name)`, which takes precedence over the structured
	// JSON fallback. Returns (answer, true) on a hit.
	ExtractFinalAnswer(response string) (FinalAnswer, bool)

	// GetNoCodeFeedback is enqueued when a turn's response contained
	// neither a final answer nor a code fragment.
	GetNoCodeFeedback() string

	// GetErrorFeedback renders an executor error (and the fragment
	// that caused it, if available) as feedback for the next prompt.
	GetErrorFeedback(err error, code string) string

	// GetSuccessFeedback renders a success notice; priorCount is -1
	// when there is no prior collection to compare against.
	GetSuccessFeedback(resultCount, priorCount int) string

	// GetRepeatedCodeFeedback is enqueued when a turn resubmits the
	// previous turn's code fragment unchanged.
	GetRepeatedCodeFeedback(resultCount int) string
}

// Factory builds a fresh Adapter instance. Adapters are stateless
// across turns (all turn state lives in the orchestrator), so a
// factory rather than a shared singleton keeps registry lookups free
// of accidental cross-session sharing.
type Factory func() Adapter

var registry = map[string]Factory{}

// Register adds a named adapter factory, called from each concrete
// adapter's package init().
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Get looks up an adapter by exact registered name.
func Get(name string) (Adapter, bool) {
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// namePatterns maps substrings of a model name to the adapter best
// suited to it — code-writing models default to the js adapter;
// anything else gets the more constrained lisp adapter, matching
// spec.md §4.7's "unknown selections fall back to a base adapter"
// rule, here narrowed to "fall back to lisp" since the S-expression
// DSL is the more restricted, safer default surface.
var namePatterns = []struct {
	substr string
	name   string
}{
	{"gpt", "js"},
	{"claude", "js"},
	{"gemini", "js"},
	{"o1", "lisp"},
	{"o3", "lisp"},
}

// AutoDetect picks an adapter name for modelName by substring match,
// falling back to "lisp" with ok=false so the caller can log a
// warning about the fallback per spec.md §4.7.
func AutoDetect(modelName string) (name string, ok bool) {
	lower := strings.ToLower(modelName)
	for _, p := range namePatterns {
		if strings.Contains(lower, p.substr) {
			return p.name, true
		}
	}
	return "lisp", false
}
