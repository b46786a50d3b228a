package sim

import (
	"reflect"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
)

// Params carries an action's invocation arguments. Values are the JSON
// scalar shapes so params survive save/load unchanged.
type Params map[string]any

// Str reads a string param, "" when absent.
func (p Params) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int reads a numeric param as int, 0 when absent.
func (p Params) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float reads a numeric param, 0 when absent.
func (p Params) Float(key string) float64 {
	switch v := p[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Equal compares params structurally, treating int and float64 forms of the
// same number as equal (params round-trip through JSON).
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	return reflect.DeepEqual(normalizeParams(p), normalizeParams(other))
}

func normalizeParams(p Params) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}

// Spec is an action type's class-level declaration.
type Spec struct {
	// Actual actions are directly selectable by AI decisions; the rest are
	// chunk/helper primitives other actions compose.
	Actual bool

	// IsMajor is the default major/minor classification of events this
	// action produces.
	IsMajor bool

	// AllowGathering permits drafting the running avatar into world
	// gatherings.
	AllowGathering bool

	// AllowWorldEvents permits random fortunes/misfortunes while running.
	AllowWorldEvents bool

	// CooldownMonths blocks re-starting the same action type for this many
	// months after it finishes. Zero disables the cooldown.
	CooldownMonths int
}

// Action is the contract every action type implements. One value exists per
// execution; per-execution state lives on the value and is exposed through
// the save hooks.
type Action interface {
	Name() string
	Spec() Spec

	// CanStart is a pure precondition check; no mutation.
	CanStart(env *Env, a *Avatar, p Params) (bool, string)

	// Start runs one-shot setup and may return an announcement event.
	Start(env *Env, a *Avatar, p Params) *eventlog.Event

	// Step advances one tick's worth of progress. It must be re-entrant
	// across ticks and must not block on LLM responses.
	Step(env *Env, a *Avatar, p Params) Result

	// Finish runs once after Step returns a terminal status. It is not
	// called for preempted actions.
	Finish(env *Env, a *Avatar, p Params) []eventlog.Event

	// SaveData / LoadSaveData expose execution state for save files.
	SaveData() map[string]any
	LoadSaveData(data map[string]any)
}

// PendingCanceler is implemented by actions holding an in-flight LLM call;
// Preempt cancels through it.
type PendingCanceler interface {
	CancelPending()
}

// NoState is embedded by actions without per-execution save state.
type NoState struct{}

// SaveData implements Action.
func (NoState) SaveData() map[string]any { return nil }

// LoadSaveData implements Action.
func (NoState) LoadSaveData(map[string]any) {}

// Instance is a promoted plan: the live action object plus its params and
// status. At most one exists per avatar.
type Instance struct {
	Action Action
	Params Params
	Status Status
}
