package actions

import (
	"fmt"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
	"github.com/cloudrecess/xiansim/pkg/sim"
)

// Conversation approaches another avatar for a talk. The dialogue itself is
// LLM-written from the target's perspective; a single event carries it for
// both sides, so two avatars seeking each other out the same month still
// log one exchange.
type Conversation struct {
	sim.MutualAction
}

func (c *Conversation) Name() string { return NameConverse }

func (c *Conversation) Spec() sim.Spec {
	return sim.Spec{Actual: true, AllowGathering: true}
}

func (c *Conversation) CanStart(env *sim.Env, a *sim.Avatar, p sim.Params) (bool, string) {
	return sim.CanStartMutual(env, a, p)
}

// Start is deliberately silent: the exchange is logged once, when it lands.
func (c *Conversation) Start(env *sim.Env, a *sim.Avatar, p sim.Params) *eventlog.Event {
	c.StartMonth = env.Month()
	return nil
}

func (c *Conversation) Step(env *sim.Env, a *sim.Avatar, p sim.Params) sim.Result {
	return c.StepMutual(env, a, p, sim.MutualConfig{
		Task:      "conversation_feedback",
		Feedbacks: []string{sim.FeedbackTalk, sim.FeedbackReject},
		Settle: func(env *sim.Env, initiator, target *sim.Avatar, feedback string, reply map[string]any) sim.Result {
			if feedback == sim.FeedbackReject {
				ev := eventlog.New(env.Month(),
					fmt.Sprintf("%s brushed off %s's attempt at conversation", target.Name, initiator.Name),
					[]string{initiator.ID, target.ID}, false, false)
				return sim.Failed(ev)
			}

			content, _ := reply["content"].(string)
			if content == "" {
				content = fmt.Sprintf("%s and %s talked for a while", initiator.Name, target.Name)
			}
			env.AdjustRelation(initiator, target, 1)
			ev := eventlog.New(env.Month(), content,
				[]string{initiator.ID, target.ID}, false, false)
			return sim.Completed(ev)
		},
	})
}

func (c *Conversation) Finish(env *sim.Env, a *sim.Avatar, p sim.Params) []eventlog.Event {
	return nil
}
