package optimizers

import (
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// mutationRule is one textual rewrite. Rules must be total: they return the
// prompt unchanged when they do not apply.
type mutationRule func(rng *rand.Rand, prompt string) string

var titleCaser = cases.Title(language.English)

// mutationCatalog is the fixed set of rewrites a single mutation draws
// from, uniformly.
var mutationCatalog = []mutationRule{
	mutateSynonym,
	mutateToneDirective,
	mutateEmphasis,
	mutateImperativePrefix,
}

var synonyms = map[string][]string{
	"provide": {"give", "supply", "deliver", "present"},
	"analyze": {"examine", "study", "evaluate", "assess"},
	"create":  {"generate", "produce", "develop", "build"},
	"explain": {"describe", "clarify", "elaborate", "detail"},
	"answer":  {"respond to", "address", "resolve"},
	"helpful": {"supportive", "useful", "attentive"},
}

// mutateSynonym replaces the first word with a known synonym.
func mutateSynonym(rng *rand.Rand, prompt string) string {
	words := strings.Fields(prompt)
	for i, word := range words {
		trimmed := strings.ToLower(strings.Trim(word, ".,!?"))
		if syns, ok := synonyms[trimmed]; ok {
			replacement := syns[rng.Intn(len(syns))]
			words[i] = strings.Replace(word, strings.Trim(word, ".,!?"), replacement, 1)
			return strings.Join(words, " ")
		}
	}
	return prompt
}

var toneDirectives = []string{
	"Be concise.",
	"Be specific.",
	"Keep responses short.",
	"Use a professional tone.",
}

// mutateToneDirective appends one tone directive.
func mutateToneDirective(rng *rand.Rand, prompt string) string {
	directive := toneDirectives[rng.Intn(len(toneDirectives))]
	if prompt == "" {
		return directive
	}
	return strings.TrimRight(prompt, " ") + " " + directive
}

// mutateEmphasis swaps the closing period for an exclamation mark, or back.
func mutateEmphasis(rng *rand.Rand, prompt string) string {
	trimmed := strings.TrimRight(prompt, " ")
	switch {
	case strings.HasSuffix(trimmed, "."):
		return strings.TrimSuffix(trimmed, ".") + "!"
	case strings.HasSuffix(trimmed, "!"):
		return strings.TrimSuffix(trimmed, "!") + "."
	default:
		return prompt
	}
}

var imperativePrefixes = []string{
	"always",
	"remember:",
	"important:",
	"focus:",
}

// mutateImperativePrefix prefaces the prompt with a title-cased imperative.
func mutateImperativePrefix(rng *rand.Rand, prompt string) string {
	prefix := titleCaser.String(imperativePrefixes[rng.Intn(len(imperativePrefixes))])
	if prompt == "" {
		return prefix
	}
	return prefix + " " + prompt
}
