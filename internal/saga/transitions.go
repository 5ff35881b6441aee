package saga

// transitions is the state machine's transition table. For each non-terminal
// state it lists the events that are allowed to move the saga forward and the
// state they lead to. Everything not in the table is a duplicate or an
// out-of-order delivery and is discarded without side effects, which is what
// makes at-least-once redelivery safe.
//
// EventOrderCreated is handled separately by the orchestrator because it
// creates the instance rather than transitioning an existing one.
var transitions = map[State]map[EventType]State{
	StateReservationPending: {
		EventReservationSucceeded: StateNotificationPending,
		EventReservationFailed:    StateFailed,
	},
	StateNotificationPending: {
		EventNotificationSucceeded: StateCompleted,
		EventNotificationFailed:    StateFailed,
	},
	StateFailed: {
		EventCompensationDone: StateCancelled,
	},
}

// nextState returns the state the saga moves to when event arrives in state,
// and whether the (state, event) pair is a legal transition at all.
func nextState(state State, event EventType) (State, bool) {
	byEvent, ok := transitions[state]
	if !ok {
		return state, false
	}
	next, ok := byEvent[event]
	return next, ok
}
