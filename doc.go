// Package promptlab is a prompt-experimentation and optimization engine. It
// manages experiments that compare instruction-prompt variants against a
// fixed set of test inputs, measures their performance (latency, token
// cost, success rate) through an external text-generation service, and
// evolves better prompts with a population-based genetic search.
//
// Key components:
//
//   - experiment: the Experiment aggregate (test cases, variants, results,
//     metrics, generation history) and its persistence gateway.
//
//   - harness: the A/B tester that runs every variant against every test
//     case and recomputes per-variant aggregate metrics.
//
//   - optimizers: the fitness model (latency- and token-weighted cost) and
//     the genetic optimizer (elitist selection, sentence-level crossover,
//     fixed mutation catalog).
//
//   - report: per-variant metric rendering and full-state JSON export.
//
//   - lab: the public operation surface wiring the above over injected
//     storage and generation-service dependencies.
//
// Start with the lab package:
//
//	store, _ := storage.NewSQLiteStore(storage.DefaultSQLiteConfig())
//	gen, _ := llms.NewGenerator("anthropic", "", "claude-3-5-haiku-latest")
//	l := lab.New(store, gen)
//	id, _ := l.CreateExperiment(ctx, "Tone Test", []string{"My order is late"})
package promptlab
