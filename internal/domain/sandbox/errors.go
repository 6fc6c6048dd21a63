package sandbox

import "fmt"

// EnvironmentPreparationError reports a sandbox that could not be created or
// provisioned. Hint tells the user how to fix it.
type EnvironmentPreparationError struct {
	Sandbox string
	Op      string
	Hint    string
	Err     error
}

func (e *EnvironmentPreparationError) Error() string {
	msg := fmt.Sprintf("sandbox %s: %s failed", e.Sandbox, e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *EnvironmentPreparationError) Unwrap() error {
	return e.Err
}
