package attempt

import (
	"fmt"

	"github.com/bitlabs/talentstream-proctor/internal/model"
)

// transitions lists the legal moves between pages. Anything absent is illegal.
var transitions = map[model.Page][]model.Page{
	model.PageInstructions: {model.PageTest},
	model.PageTest: {
		model.PagePassAcknowledgment,
		model.PageFailAcknowledgment,
		model.PageTimesUp,
		model.PageInterrupted,
		model.PageExitConfirmed,
	},
	model.PageTimesUp: {model.PagePassAcknowledgment, model.PageFailAcknowledgment},
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to model.Page) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to model.Page) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
