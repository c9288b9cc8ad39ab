package host

import "math/rand/v2"

// mathRandom adapts math/rand/v2's top-level generator — which is safe
// for concurrent use, so one instance can feed every EvaluateParallel
// worker — to the RandomSource interface.
type mathRandom struct{}

func (mathRandom) Float64() float64 { return rand.Float64() }

// DefaultRandomSource returns the RandomSource the CLI and liveserver
// hand to Evaluate when the embedder has no source of its own to inject.
func DefaultRandomSource() RandomSource { return mathRandom{} }
