// Package scoring provides popularity score calculations for reviews
// with calibration support for the periodic ranking jobs.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxRating is the upper bound of the review rating scale.
const MaxRating = 5.0

// Validation errors for score inputs.
var (
	ErrNegativeLikes    = errors.New("like count must be non-negative")
	ErrNegativeComments = errors.New("comment count must be non-negative")
	ErrNegativeAge      = errors.New("age must be non-negative")
	ErrRatingOutOfRange = fmt.Errorf("rating must be between 0 and %v", MaxRating)
)

// Metrics holds the engagement inputs for a single review at scoring time.
type Metrics struct {
	Rating       float64 // Average rating on the [0, MaxRating] scale
	LikeCount    int     // Total likes
	CommentCount int     // Total comments
}

// Validate checks that the metrics are within their defined ranges.
func (m Metrics) Validate() error {
	if m.LikeCount < 0 {
		return ErrNegativeLikes
	}
	if m.CommentCount < 0 {
		return ErrNegativeComments
	}
	if m.Rating < 0 || m.Rating > MaxRating {
		return ErrRatingOutOfRange
	}
	return nil
}

// RatingWeight computes the rating component of the popularity score.
// The rating is normalized to [0, 1] before the weight is applied, so the
// component stays comparable across weight configurations.
func RatingWeight(rating float64, w float64) float64 {
	if rating < 0 {
		rating = 0
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return (rating / MaxRating) * w
}

// EngagementWeight computes the like/comment component of the popularity score.
// Counts are dampened with log1p so runaway engagement grows the score
// sublinearly; the component is strictly increasing in both counts.
func EngagementWeight(likeCount, commentCount int, likeW, commentW float64) float64 {
	if likeCount < 0 {
		likeCount = 0
	}
	if commentCount < 0 {
		commentCount = 0
	}
	return likeW*math.Log1p(float64(likeCount)) + commentW*math.Log1p(float64(commentCount))
}

// DecayWeight computes a recency multiplier in (0, 1] from the review's age.
// Uses exponential half-life decay: a review exactly halfLife old scores half
// of a brand-new one. A non-positive halfLife disables decay entirely, which
// is how the all-time period is scored.
func DecayWeight(age time.Duration, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}
	if age <= 0 {
		return 1.0
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

// Score computes the popularity score for one review.
//
// Formula: (rating_component + engagement_component) * decay.
// The result is deterministic for fixed inputs and monotonic: more likes,
// comments, or rating never lowers it; more age never raises it.
//
// age is the review's age within the ranking window; halfLife comes from the
// weight configuration (zero disables decay). Returns an error when inputs
// fall outside their defined ranges.
func Score(m Metrics, age time.Duration, w *Weights) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if age < 0 {
		return 0, ErrNegativeAge
	}
	if w == nil {
		w = DefaultWeights()
	}

	base := RatingWeight(m.Rating, w.Rating) +
		EngagementWeight(m.LikeCount, m.CommentCount, w.Like, w.Comment)

	return base * DecayWeight(age, w.HalfLife()), nil
}
