package app

import (
	"time"

	"immunization_bot/internal/domain/immunization"
)

// Clock reports the current instant. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// CalculatorProvider hands out the calculator built from the current reference table.
// Implementations may swap the instance at any time; callers fetch it once per operation.
type CalculatorProvider interface {
	Current() *immunization.Calculator
}

// StaticCalculator serves one fixed calculator.
type StaticCalculator struct {
	Calculator *immunization.Calculator
}

func (s StaticCalculator) Current() *immunization.Calculator { return s.Calculator }
