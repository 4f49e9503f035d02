// Package profile derives a canonical style profile for a speaker from a
// sample of their messages, via the hosted model. Extraction never fails
// outward: any upstream or parsing failure yields a fully-defaulted
// profile so the rest of the service never sees a partial record.
package profile

// Formality enum values.
const (
	FormalityFormal = "formal"
	FormalityCasual = "casual"
	FormalityMixed  = "mixed"
)

// StyleProfile is the canonical description of a persona's voice. After
// extraction every nested object is present with defaulted sub-fields,
// even when the model's output was partial.
type StyleProfile struct {
	Tone       string   `json:"tone"`
	Formality  string   `json:"formality"`
	Pacing     string   `json:"pacing"`
	Vocabulary []string `json:"vocabulary"`
	Quirks     []string `json:"quirks"`
	Examples   []string `json:"examples"`

	Traits                Traits                `json:"traits"`
	Emotions              Emotions              `json:"emotions"`
	Preferences           Preferences           `json:"preferences"`
	CommunicationPatterns CommunicationPatterns `json:"communication_patterns"`
}

// Traits are 1-10 personality scores.
type Traits struct {
	Openness       int `json:"openness"`
	Expressiveness int `json:"expressiveness"`
	Humor          int `json:"humor"`
	Empathy        int `json:"empathy"`
	Directness     int `json:"directness"`
	Enthusiasm     int `json:"enthusiasm"`
}

type Emotions struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
	Triggers  Triggers `json:"triggers"`
}

type Triggers struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

type Preferences struct {
	Topics     []string `json:"topics"`
	Avoids     []string `json:"avoids"`
	Engagement []string `json:"engagement"`
}

type CommunicationPatterns struct {
	MessageLength     string   `json:"message_length"`
	PunctuationStyle  string   `json:"punctuation_style"`
	Capitalization    string   `json:"capitalization"`
	Abbreviations     []string `json:"abbreviations"`
	UniqueExpressions []string `json:"unique_expressions"`
}
