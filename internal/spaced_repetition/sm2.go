package spaced_repetition

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultEaseFactor is the ease a freshly created item starts with
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the hard floor for the ease factor
	MinEaseFactor = 1.3
	// PassThreshold is the lowest grade that counts as a successful recall
	PassThreshold = 3
	// FirstInterval is used for the first success after a reset
	FirstInterval = 1
	// SecondInterval is used for the second consecutive success
	SecondInterval = 6
	// MasteredRepetition is the streak at which an item counts as mastered
	MasteredRepetition = 4
)

var (
	ErrInvalidGrade = errors.New("invalid grade")
	ErrInvalidState = errors.New("invalid scheduling state")
)

// Grade represents the quality of a single recall, 0 to 5
type Grade int

const (
	// Complete blackout, unable to recall
	GradeBlackout Grade = 0
	// Incorrect response but remembered upon seeing the correct answer
	GradeIncorrect Grade = 1
	// Incorrect response but the correct answer felt familiar
	GradeIncorrectFamiliar Grade = 2
	// Correct response but required significant effort
	GradeCorrectDifficult Grade = 3
	// Correct response after some hesitation
	GradeCorrectHesitation Grade = 4
	// Perfect response with no hesitation
	GradePerfect Grade = 5
)

// Validate reports whether the grade lies in [0, 5]
func (g Grade) Validate() error {
	if g < GradeBlackout || g > GradePerfect {
		return errors.Wrapf(ErrInvalidGrade, "grade %d out of range [0, 5]", int(g))
	}
	return nil
}

// Passed reports whether the grade counts as a successful recall
func (g Grade) Passed() bool {
	return g >= PassThreshold
}

// State is the per-item scheduling state. It is a value: Next never touches
// the caller's copy.
type State struct {
	Interval   int     `json:"interval"`    // Days until the next review
	Repetition int     `json:"repetition"`  // Consecutive successes since the last reset
	EaseFactor float64 `json:"ease_factor"` // Interval growth multiplier
}

// NewState returns the conventional state of an item that was never reviewed
func NewState() State {
	return State{
		Interval:   FirstInterval,
		Repetition: 0,
		EaseFactor: DefaultEaseFactor,
	}
}

// Validate checks the invariants a stored state must satisfy
func (s State) Validate() error {
	switch {
	case math.IsNaN(s.EaseFactor) || math.IsInf(s.EaseFactor, 0):
		return errors.Wrap(ErrInvalidState, "ease factor is not a finite number")
	case s.EaseFactor < MinEaseFactor:
		return errors.Wrapf(ErrInvalidState, "ease factor %.4f below floor %.1f", s.EaseFactor, MinEaseFactor)
	case s.Interval < 1:
		return errors.Wrapf(ErrInvalidState, "interval %d must be at least 1 day", s.Interval)
	case s.Repetition < 0:
		return errors.Wrapf(ErrInvalidState, "repetition %d is negative", s.Repetition)
	}
	return nil
}

// Next computes the state that follows a review graded with grade.
//
// A failing grade (< 3) resets repetition to 0 and interval to 1 day and keeps
// the ease factor. A passing grade adjusts the ease factor with the SM-2
// formula, floors it at 1.3, increments repetition and picks the interval:
// 1 day for the first success, 6 days for the second, and
// round(previous interval * new ease) afterwards. Rounding is half away from
// zero.
//
// Next does not validate its input; use NextChecked for that.
func Next(current State, grade Grade) State {
	if !grade.Passed() {
		return State{
			Interval:   FirstInterval,
			Repetition: 0,
			EaseFactor: current.EaseFactor,
		}
	}

	q := float64(GradePerfect - grade)
	ease := current.EaseFactor + (0.1 - q*(0.08+q*0.02))
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}

	next := State{
		Repetition: current.Repetition + 1,
		EaseFactor: ease,
	}

	switch next.Repetition {
	case 1:
		next.Interval = FirstInterval
	case 2:
		next.Interval = SecondInterval
	default:
		// previous interval, new ease
		next.Interval = int(math.Round(float64(current.Interval) * ease))
	}

	return next
}

// NextChecked validates grade and current before delegating to Next
func NextChecked(current State, grade Grade) (State, error) {
	if err := grade.Validate(); err != nil {
		return State{}, err
	}
	if err := current.Validate(); err != nil {
		return State{}, err
	}
	return Next(current, grade), nil
}

// NextReviewDate returns the moment the item becomes due again
func NextReviewDate(now time.Time, interval int) time.Time {
	return now.AddDate(0, 0, interval)
}

// IsMastered determines if an item is considered "mastered"
func IsMastered(s State) bool {
	return s.Repetition >= MasteredRepetition
}
