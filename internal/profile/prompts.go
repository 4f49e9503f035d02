package profile

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aminmomin2/convocate/internal/parser"
)

const extractionSystemPrompt = `You are a communication-style analyst. You study a person's chat messages and produce a precise, evidence-based fingerprint of how they write: tone, pacing, vocabulary, quirks, personality traits, emotional patterns and formatting habits.

Rules:
- Base every field on evidence from the supplied messages. Do not invent traits the messages don't show.
- Quote short verbatim examples where the schema asks for examples or expressions.
- Trait scores are 1-10 integers. 5 means "no strong signal either way".
- If the messages give no signal for a field, use a neutral value rather than guessing.`

func extractionUserPrompt(speaker string, samples []parser.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the writing style of %q from these %d messages and save the profile.\n\nMessages:\n", speaker, len(samples))
	for _, m := range samples {
		sb.WriteString("- ")
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func stringArray(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: desc,
		Items:       &jsonschema.Definition{Type: jsonschema.String},
	}
}

func traitScore(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Integer, Description: desc + " (1-10)"}
}

// profileFunction is the structured-output schema the model is forced to
// call. It mirrors StyleProfile field for field.
func profileFunction() openai.FunctionDefinition {
	return openai.FunctionDefinition{
		Name:        "save_style_profile",
		Description: "Save the analyzed communication style profile for the speaker.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"tone": {Type: jsonschema.String, Description: "Overall tone, e.g. warm, sarcastic, matter-of-fact"},
				"formality": {
					Type: jsonschema.String,
					Enum: []string{FormalityFormal, FormalityCasual, FormalityMixed},
				},
				"pacing":     {Type: jsonschema.String, Description: "Rhythm of replies, e.g. rapid-fire, measured"},
				"vocabulary": stringArray("Distinctive words and phrases used repeatedly"),
				"quirks":     stringArray("Habits like double-texting, trailing ellipses, all lowercase"),
				"examples":   stringArray("3-5 verbatim messages that best capture the voice"),
				"traits": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"openness":       traitScore("Openness about personal matters"),
						"expressiveness": traitScore("Emotional expressiveness"),
						"humor":          traitScore("Use of humor"),
						"empathy":        traitScore("Empathy toward the other speaker"),
						"directness":     traitScore("Directness"),
						"enthusiasm":     traitScore("Enthusiasm"),
					},
					Required: []string{"openness", "expressiveness", "humor", "empathy", "directness", "enthusiasm"},
				},
				"emotions": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"primary":   {Type: jsonschema.String, Description: "Dominant emotional register"},
						"secondary": stringArray("Other recurring emotional registers"),
						"triggers": {
							Type: jsonschema.Object,
							Properties: map[string]jsonschema.Definition{
								"positive": stringArray("Topics that draw energetic, positive replies"),
								"negative": stringArray("Topics that draw short or irritated replies"),
							},
						},
					},
				},
				"preferences": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"topics":     stringArray("Topics they gravitate toward"),
						"avoids":     stringArray("Topics they deflect or ignore"),
						"engagement": stringArray("How they engage, e.g. asks follow-ups, shares links"),
					},
				},
				"communication_patterns": {
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"message_length":     {Type: jsonschema.String, Description: "short, medium or long"},
						"punctuation_style":  {Type: jsonschema.String, Description: "e.g. minimal, standard, heavy exclamation"},
						"capitalization":     {Type: jsonschema.String, Description: "e.g. standard, all lowercase"},
						"abbreviations":      stringArray("Abbreviations they actually use"),
						"unique_expressions": stringArray("Signature expressions, verbatim"),
					},
				},
			},
			Required: []string{"tone", "formality", "pacing", "vocabulary", "quirks", "examples", "traits"},
		},
	}
}
