package attempt

import "github.com/bitlabs/talentstream-proctor/internal/proctor"

// ActionType names a learner interaction or browser observation.
type ActionType string

const (
	ActionStart       ActionType = "start"
	ActionSelect      ActionType = "select"
	ActionNext        ActionType = "next"
	ActionPrev        ActionType = "prev"
	ActionJump        ActionType = "jump"
	ActionSubmit      ActionType = "submit"
	ActionGoBack      ActionType = "go_back"
	ActionConfirmExit ActionType = "confirm_exit"
	ActionViewResults ActionType = "view_results"
	ActionSignal      ActionType = "signal"
	ActionSnapshot    ActionType = "snapshot"
)

// Action is the unit of input to a Runner, shared by the REST and WebSocket
// transports.
type Action struct {
	Type   ActionType      `json:"action" binding:"required,oneof=start select next prev jump submit go_back confirm_exit view_results signal snapshot"`
	Option string          `json:"option,omitempty"`
	Index  *int            `json:"index,omitempty"`
	Signal *proctor.Signal `json:"signal,omitempty"`
}
