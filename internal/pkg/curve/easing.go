package curve

import (
	"fmt"
	"math"
)

// Easing names a normalized-time remapping curve. Every curve maps [0,1]
// onto a range starting at 0 and ending at 1; only Spring may leave [0,1]
// in between.
type Easing string

const (
	Linear         Easing = "linear"
	EaseIn         Easing = "ease-in"
	EaseOut        Easing = "ease-out"
	EaseInOut      Easing = "ease-in-out"
	EaseInCubic    Easing = "ease-in-cubic"
	EaseOutCubic   Easing = "ease-out-cubic"
	EaseInOutCubic Easing = "ease-in-out-cubic"
	Spring         Easing = "spring"
)

// DefaultEasing is used when a shot does not name one.
const DefaultEasing = EaseInOutCubic

// Easings lists every supported curve.
var Easings = []Easing{
	Linear, EaseIn, EaseOut, EaseInOut,
	EaseInCubic, EaseOutCubic, EaseInOutCubic, Spring,
}

// ParseEasing resolves a curve name. An empty name yields DefaultEasing.
func ParseEasing(name string) (Easing, error) {
	if name == "" {
		return DefaultEasing, nil
	}
	e := Easing(name)
	if !e.Valid() {
		return "", fmt.Errorf("unknown easing %q", name)
	}
	return e, nil
}

// Valid reports whether e is one of the supported curves.
func (e Easing) Valid() bool {
	switch e {
	case Linear, EaseIn, EaseOut, EaseInOut,
		EaseInCubic, EaseOutCubic, EaseInOutCubic, Spring:
		return true
	}
	return false
}

// Apply remaps t after clamping it to [0,1].
func (e Easing) Apply(t float64) float64 {
	t = Clamp01(t)
	switch e {
	case Linear:
		return t
	case EaseIn:
		return t * t
	case EaseOut:
		return 1 - (1-t)*(1-t)
	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	case EaseInCubic:
		return t * t * t
	case EaseOutCubic:
		return 1 - math.Pow(1-t, 3)
	case EaseInOutCubic:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	case Spring:
		return spring(t)
	}
	// Unknown curves behave as linear; callers validate names up front.
	return t
}

// spring is a damped oscillation settling on 1: 1 - e^(-6t)·cos(3πt).
// The raw formula lands at 1+e^-6 for t=1, so the endpoint is pinned.
func spring(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return 1 - math.Exp(-6*t)*math.Cos(3*math.Pi*t)
}
