// Package saga runs multi-entity write sequences with explicit
// compensation. Each step pairs a forward action with an undo; when a
// forward action fails, the undos of every completed step run in
// reverse order and the forward error comes back wrapped with the
// step name.
package saga

import (
	"fmt"
	"log"
)

// Step is one forward action plus the compensation that undoes it.
// Compensate may be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Forward    func() error
	Compensate func() error
}

// Saga is an ordered list of steps executed as a unit.
type Saga struct {
	name  string
	steps []Step
}

// New returns an empty saga. The name appears in compensation logs.
func New(name string) *Saga {
	return &Saga{name: name}
}

// Add appends a step. Returns the saga for chaining.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes steps in order. On the first forward failure it
// compensates completed steps in reverse, logs any compensation
// failure, and returns the forward error wrapped with the step name.
// Compensation errors never replace the forward error.
func (s *Saga) Run() error {
	done := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Forward(); err != nil {
			s.unwind(done, step.Name)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) unwind(done []Step, failed string) {
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(); err != nil {
			log.Printf("[saga] %s: compensate %q after %q failed: %v", s.name, step.Name, failed, err)
		}
	}
}
