package types

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cuemby/memoryengine/pkg/memerr"
)

// episodeInput mirrors the fields start_episode accepts, expressed as a
// struct so the shared validator instance can enforce basic shape (required
// fields, sane bounds) before the engine touches storage.
type episodeInput struct {
	Description string `validate:"required,min=1,max=4096"`
	Domain      string `validate:"required,min=1,max=256"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStartEpisode checks the inputs to start_episode, translating the
// first validator failure into an InvalidInput error.
func ValidateStartEpisode(description, domain string) error {
	in := episodeInput{Description: description, Domain: domain}
	if err := v().Struct(in); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return memerr.InvalidInput(fe.Field(), fe.Tag())
		}
		return memerr.InvalidInput("episode", err.Error())
	}
	return nil
}

// ValidateQualityScore enforces the quality_score invariant: value in
// [0, 1].
func ValidateQualityScore(score float64) error {
	if score < 0 || score > 1 {
		return memerr.InvalidInput("quality_score", "must be in [0,1]")
	}
	return nil
}

// ValidateStepNumber enforces strictly-increasing-from-1 step numbers.
func ValidateStepNumber(expected, got int) error {
	if got != expected {
		return memerr.InvalidInput("step_number", "must be strictly increasing from 1")
	}
	return nil
}
