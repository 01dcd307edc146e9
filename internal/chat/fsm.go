package chat

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"
)

// State is a step of one chat turn.
type State string

const (
	StateReceived              State = "Received"
	StateAuthenticated         State = "Authenticated"
	StateUserTurnRecorded      State = "UserTurnRecorded"
	StateLinkagePrepared       State = "LinkagePrepared"
	StateUpstreamDispatched    State = "UpstreamDispatched"
	StateAssistantTurnRecorded State = "AssistantTurnRecorded"
	StateResponded             State = "Responded"

	StateUnauthenticated State = "Unauthenticated"
	StateInvalid         State = "Invalid"
	StateUpstreamFailed  State = "UpstreamFailed"
	StateStorageFailed   State = "StorageFailed"
)

type Trigger string

const (
	triggerAuthenticate    Trigger = "Authenticate"
	triggerReject          Trigger = "Reject"
	triggerInvalid         Trigger = "Invalid"
	triggerRecordUser      Trigger = "RecordUserTurn"
	triggerPrepareLinkage  Trigger = "PrepareLinkage"
	triggerDispatch        Trigger = "Dispatch"
	triggerRecordAssistant Trigger = "RecordAssistantTurn"
	triggerRespond         Trigger = "Respond"
	triggerUpstreamFail    Trigger = "UpstreamFail"
	triggerStorageFail     Trigger = "StorageFail"
)

func (s State) Terminal() bool {
	switch s {
	case StateResponded, StateUnauthenticated, StateInvalid, StateUpstreamFailed, StateStorageFailed:
		return true
	}
	return false
}

func newTurnMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateReceived)

	fsm.Configure(StateReceived).
		Permit(triggerAuthenticate, StateAuthenticated).
		Permit(triggerReject, StateUnauthenticated).
		Permit(triggerStorageFail, StateStorageFailed)

	fsm.Configure(StateAuthenticated).
		Permit(triggerInvalid, StateInvalid).
		Permit(triggerRecordUser, StateUserTurnRecorded).
		Permit(triggerReject, StateUnauthenticated).
		Permit(triggerStorageFail, StateStorageFailed)

	fsm.Configure(StateUserTurnRecorded).
		Permit(triggerPrepareLinkage, StateLinkagePrepared).
		Permit(triggerStorageFail, StateStorageFailed)

	fsm.Configure(StateLinkagePrepared).
		Permit(triggerDispatch, StateUpstreamDispatched).
		Permit(triggerUpstreamFail, StateUpstreamFailed).
		Permit(triggerStorageFail, StateStorageFailed)

	fsm.Configure(StateUpstreamDispatched).
		Permit(triggerRecordAssistant, StateAssistantTurnRecorded).
		Permit(triggerUpstreamFail, StateUpstreamFailed).
		Permit(triggerStorageFail, StateStorageFailed)

	fsm.Configure(StateAssistantTurnRecorded).
		Permit(triggerRespond, StateResponded)

	fsm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		zerolog.Ctx(ctx).Debug().
			Str("from", fmt.Sprint(t.Source)).
			Str("to", fmt.Sprint(t.Destination)).
			Str("trigger", fmt.Sprint(t.Trigger)).
			Msg("chat turn transition")
	})
	return fsm
}

// fire moves the machine and hands back cause, so failure paths read
// `return fire(ctx, fsm, triggerX, err)`.
func fire(ctx context.Context, fsm *stateless.StateMachine, trigger Trigger, cause error) error {
	if err := fsm.FireCtx(ctx, trigger); err != nil {
		return fmt.Errorf("chat turn: %w", err)
	}
	return cause
}

func currentState(fsm *stateless.StateMachine) State {
	s, _ := fsm.MustState().(State)
	return s
}
