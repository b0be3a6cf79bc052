package session

import "sort"

// Trigger is a presentation action that an input event can map to.
type Trigger string

const (
	TriggerNone     Trigger = ""
	TriggerNext     Trigger = "next"
	TriggerPrevious Trigger = "previous"
	TriggerExit     Trigger = "exit"
)

var keyTriggers = map[string]Trigger{
	"Enter":      TriggerNext,
	"Space":      TriggerNext,
	" ":          TriggerNext,
	"ArrowRight": TriggerNext,
	"ArrowLeft":  TriggerPrevious,
	"Escape":     TriggerExit,
}

// BoundKeys returns every key name that maps to a trigger, sorted.
func BoundKeys() []string {
	keys := make([]string, 0, len(keyTriggers))
	for k := range keyTriggers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TriggerForKey maps a DOM key name to a trigger. Unknown keys map to TriggerNone.
func TriggerForKey(name string) Trigger {
	return keyTriggers[name]
}

// OnKey applies the trigger bound to key. Unbound keys are ignored.
func (s *Session) OnKey(key string) error {
	switch TriggerForKey(key) {
	case TriggerNext:
		return s.Next()
	case TriggerPrevious:
		return s.Previous()
	case TriggerExit:
		return s.Exit()
	default:
		return nil
	}
}
