package ai

import (
	"context"
	"time"
)

// GeneratorWithTimeout bounds every Generate call by d. A non-positive d returns gen unchanged.
func GeneratorWithTimeout(gen ResponseGenerator, d time.Duration) ResponseGenerator {
	if d <= 0 {
		return gen
	}
	return timeoutGenerator{next: gen, timeout: d}
}

// SummarizerWithTimeout bounds every Summarize call by d. A non-positive d returns s unchanged.
func SummarizerWithTimeout(s Summarizer, d time.Duration) Summarizer {
	if d <= 0 {
		return s
	}
	return timeoutSummarizer{next: s, timeout: d}
}

type timeoutGenerator struct {
	next    ResponseGenerator
	timeout time.Duration
}

func (tg timeoutGenerator) Generate(ctx context.Context, window []Message) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, tg.timeout)
	defer cancel()
	return tg.next.Generate(ctx, window)
}

type timeoutSummarizer struct {
	next    Summarizer
	timeout time.Duration
}

func (ts timeoutSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ts.timeout)
	defer cancel()
	return ts.next.Summarize(ctx, prompt)
}
