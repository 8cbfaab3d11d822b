package trigger

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-blend/common"
)

// KeyBindings maps key codes to the trigger each key publishes when pressed.
type KeyBindings map[uint32]Trigger

// ParseKeyBindings resolves configured key names (see common.KeyCode) to key codes.
//
// Parameters:
//   - named: triggers keyed by key name, for example "1" or "space"
//
// Returns:
//   - KeyBindings: the bindings keyed by key code
//   - error: error naming the first unknown or duplicate key
func ParseKeyBindings(named map[string]Trigger) (KeyBindings, error) {
	bindings := make(KeyBindings, len(named))
	for name, t := range named {
		code, ok := common.KeyCode(name)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", name)
		}
		if _, dup := bindings[code]; dup {
			return nil, fmt.Errorf("key %q is bound twice", name)
		}
		t.Source = "key:" + name
		bindings[code] = t
	}
	return bindings, nil
}

// Handler returns a key-down callback that publishes the bound trigger on b.
// Unbound keys are ignored.
//
// Parameters:
//   - b: the bus to publish on
//
// Returns:
//   - func(keyCode uint32): the callback to register with a window
func (k KeyBindings) Handler(b Bus) func(keyCode uint32) {
	return func(keyCode uint32) {
		if t, ok := k[keyCode]; ok {
			b.Publish(t)
		}
	}
}
