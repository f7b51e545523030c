// Package tokens approximates the token footprint of transcript context and
// checks it against the model's context window.
package tokens

import (
	"math"
	"strings"
)

const charsPerToken = 4

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
}

// EstimatingCounter approximates token count as ~4 characters per token.
type EstimatingCounter struct{}

func NewEstimatingCounter() *EstimatingCounter {
	return &EstimatingCounter{}
}

func (*EstimatingCounter) Count(text string) int {
	return Estimate(text)
}

func Estimate(text string) int {
	return int(math.Ceil(float64(len(text)) / float64(charsPerToken)))
}

// promptReserve is kept free for the task instruction and the model's answer.
const promptReserve = 16_384

// knownWindows maps model ID prefixes to input context sizes. The first
// matching prefix wins.
var knownWindows = []struct {
	prefix string
	window int
}{
	{"gemini-2.5-", 1_048_576},
	{"gemini-2.0-flash", 1_048_576},
	{"gemini-1.5-pro", 2_097_152},
	{"gemini-1.5-flash", 1_048_576},
	{"claude-", 200_000},
	{"gpt-4.1", 1_047_576},
	{"gpt-4o", 128_000},
	{"gpt-5", 400_000},
}

// ContextWindow returns the input context size of model, or 0 when the model
// is not known.
func ContextWindow(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, k := range knownWindows {
		if strings.HasPrefix(model, k.prefix) {
			return k.window
		}
	}
	return 0
}

// Budget compares the context size against a model window.
type Budget struct {
	Tokens int
	Window int
}

// Fits reports whether the context leaves room for the prompt reserve. An
// unknown window (zero or negative) always fits.
func (b Budget) Fits() bool {
	if b.Window <= 0 {
		return true
	}
	return b.Tokens+promptReserve <= b.Window
}

// Usage returns the share of the window taken by the context, or 0 for an
// unknown window.
func (b Budget) Usage() float64 {
	if b.Window <= 0 {
		return 0
	}
	return float64(b.Tokens) / float64(b.Window)
}
