package sim

// Plan is a not-yet-promoted action request on an avatar's queue.
type Plan struct {
	ActionName string `json:"action"`
	Params     Params `json:"params,omitempty"`
	Priority   int    `json:"priority"`

	// ExpiryMonth drops the plan silently once the clock passes it.
	// Zero means the plan never expires.
	ExpiryMonth int `json:"expiry_month,omitempty"`

	MaxRetries int `json:"max_retries"`
	Attempted  int `json:"attempted"`
}

// Expired reports whether the plan lapsed at the given month.
func (p *Plan) Expired(month int) bool {
	return p.ExpiryMonth > 0 && month > p.ExpiryMonth
}

// NewPlan builds a plan with default priority and no expiry.
func NewPlan(action string, params Params) *Plan {
	return &Plan{ActionName: action, Params: params}
}
