package conversation

import (
	"errors"
	"fmt"

	"github.com/wolfman30/gym-booking-bot/internal/session"
)

// Trigger is an event that moves a dialogue between states.
type Trigger uint8

const (
	TriggerStart Trigger = iota
	TriggerSelectCategory
	TriggerSelectSpecialty
	TriggerSelectProvider
	TriggerSelectItem
	TriggerEnterDate
	TriggerEnterTime
	TriggerConfirm
	TriggerCancel
)

var triggerNames = [...]string{
	TriggerStart:           "start",
	TriggerSelectCategory:  "select_category",
	TriggerSelectSpecialty: "select_specialty",
	TriggerSelectProvider:  "select_provider",
	TriggerSelectItem:      "select_item",
	TriggerEnterDate:       "enter_date",
	TriggerEnterTime:       "enter_time",
	TriggerConfirm:         "confirm",
	TriggerCancel:          "cancel",
}

func (t Trigger) String() string {
	if int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return fmt.Sprintf("trigger(%d)", uint8(t))
}

// errInvalidTransition marks a (state, trigger) pair missing from the table.
var errInvalidTransition = errors.New("conversation: invalid transition")

type transitionKey struct {
	from    session.State
	trigger Trigger
}

// transitions lists every legal destination per (state, trigger).
var transitions = buildTransitions()

func buildTransitions() map[transitionKey][]session.State {
	t := map[transitionKey][]session.State{
		{session.StateStart, TriggerStart}:                        {session.StateCategorySelection},
		{session.StateCategorySelection, TriggerSelectCategory}:   {session.StateSpecialtySelection, session.StateItemSelection},
		{session.StateSpecialtySelection, TriggerSelectSpecialty}: {session.StateProviderSelection},
		{session.StateProviderSelection, TriggerSelectProvider}:   {session.StateDateInput},
		{session.StateItemSelection, TriggerSelectItem}:           {session.StateDateInput},
		{session.StateDateInput, TriggerEnterDate}:                {session.StateTimeInput},
		{session.StateTimeInput, TriggerEnterTime}:                {session.StateConfirmation},
		// A slot taken between summary and confirmation sends the user back to pick a time.
		{session.StateConfirmation, TriggerConfirm}: {session.StateCompleted, session.StateTimeInput},
	}
	for _, st := range []session.State{
		session.StateStart,
		session.StateCategorySelection,
		session.StateSpecialtySelection,
		session.StateProviderSelection,
		session.StateItemSelection,
		session.StateDateInput,
		session.StateTimeInput,
		session.StateConfirmation,
	} {
		t[transitionKey{st, TriggerCancel}] = []session.State{session.StateCancelled}
	}
	return t
}

// fire moves s to `to` if the table allows it.
func fire(s *session.Session, trigger Trigger, to session.State) error {
	for _, allowed := range transitions[transitionKey{s.State, trigger}] {
		if allowed == to {
			s.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s --%s--> %s", errInvalidTransition, s.State, trigger, to)
}
