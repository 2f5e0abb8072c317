package api

import (
	"context"
	"io"
)

// Emotion is the outcome of scoring a participant's capture.
type Emotion struct {
	Emotions map[string]float64
	Score    float64
}

// EmotionScorer rates the facial expression in an uploaded image.
type EmotionScorer interface {
	Score(ctx context.Context, image io.Reader) (Emotion, error)
}

// NopScorer returns an empty score for every image.
type NopScorer struct{}

func (NopScorer) Score(context.Context, io.Reader) (Emotion, error) {
	return Emotion{Emotions: map[string]float64{}}, nil
}
