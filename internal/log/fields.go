package log

// Field names shared by every component.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldRecipeID  = "recipe_id"
	FieldUserID    = "user_id"
	FieldStepIndex = "step_index"
	FieldOutcome   = "outcome"
	FieldEvent     = "event"
)
