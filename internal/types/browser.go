package types

// Browser action outcomes
const (
	ActionCompleted      = "completed"
	ActionWaitingCaptcha = "waiting_captcha"
	ActionFailed         = "failed"
	ActionBlocked        = "blocked"
)

// FieldFillPlan describes one form field the executor filled (or tried to)
type FieldFillPlan struct {
	FieldKey    string  `json:"field_key"`
	Locator     string  `json:"locator"`
	ValueSource string  `json:"value_source"`
	Confidence  float64 `json:"confidence"`
}

// FormQuestion is a screening question found on an application form
type FormQuestion struct {
	FieldKey string   `json:"field_key"`
	Text     string   `json:"text"`
	Type     string   `json:"type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// ActionResult is the typed outcome of one browser action
type ActionResult struct {
	Status    string          `json:"status"`
	Stage     string          `json:"stage"`
	Action    string          `json:"action"`
	Message   string          `json:"message"`
	Fields    []FieldFillPlan `json:"fields"`
	Questions []FormQuestion  `json:"questions,omitempty"`
}
