// Package event defines the structured events the conversion engine emits
// and the Reporter interface the UI collaborator implements. The engine never
// reads stdin or renders anything itself; everything user-visible flows
// through a Reporter.
package event

import "errors"

// Level classifies a log event.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

var levelNames = [...]string{
	Info:    "info",
	Success: "success",
	Warning: "warning",
	Error:   "error",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// NoPercent marks a Status call that carries no completion percentage.
const NoPercent = -1.0

// Panel is the progress snapshot rendered between engine steps.
type Panel struct {
	Source        string
	Target        string
	Iteration     uint32
	EstIterations uint32
	Percent       float64
	FilesMigrated uint64
	CurrentOp     string
}

// ErrCancelled is returned by Reporter.Prompt when the user dismisses the
// prompt instead of picking an option.
var ErrCancelled = errors.New("prompt cancelled")

// Reporter receives engine events. Implementations must not reach back into
// engine state; prompts are the only channel through which a reporter
// influences the conversion.
type Reporter interface {
	// Log emits a leveled log line.
	Log(level Level, text string)

	// Status reports the current activity, with percent in [0,100] or
	// NoPercent when the activity has no measurable progress.
	Status(text string, percent float64)

	// Panel renders the full conversion progress snapshot.
	Panel(p Panel)

	// Prompt presents options and returns the selected index, or
	// ErrCancelled.
	Prompt(title string, options []string) (int, error)
}

// Discard is a Reporter that drops everything and cancels every prompt.
// Useful as a default and in tests that don't inspect events.
type Discard struct{}

var _ Reporter = (*Discard)(nil)

func (Discard) Log(Level, string)          {}
func (Discard) Status(string, float64)     {}
func (Discard) Panel(Panel)                {}
func (Discard) Prompt(string, []string) (int, error) {
	return 0, ErrCancelled
}
