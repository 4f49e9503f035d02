package profile

// Default returns the single fixed fallback profile. It is also the base
// that partial model output is merged over, so every nested default has
// one source of truth.
func Default() StyleProfile {
	return StyleProfile{
		Tone:       "neutral",
		Formality:  FormalityCasual,
		Pacing:     "moderate",
		Vocabulary: []string{},
		Quirks:     []string{},
		Examples:   []string{},
		Traits: Traits{
			Openness:       5,
			Expressiveness: 5,
			Humor:          5,
			Empathy:        5,
			Directness:     5,
			Enthusiasm:     5,
		},
		Emotions: Emotions{
			Primary:   "neutral",
			Secondary: []string{},
			Triggers: Triggers{
				Positive: []string{},
				Negative: []string{},
			},
		},
		Preferences: Preferences{
			Topics:     []string{},
			Avoids:     []string{},
			Engagement: []string{},
		},
		CommunicationPatterns: CommunicationPatterns{
			MessageLength:     "medium",
			PunctuationStyle:  "standard",
			Capitalization:    "standard",
			Abbreviations:     []string{},
			UniqueExpressions: []string{},
		},
	}
}

// normalize fills gaps and clamps ranges on a merged profile so the
// record is total: nil slices become empty, trait scores land in 1-10,
// blank nested strings pick up their defaults.
func normalize(p *StyleProfile) {
	def := Default()

	if p.Pacing == "" {
		p.Pacing = def.Pacing
	}
	p.Vocabulary = orEmpty(p.Vocabulary)
	p.Quirks = orEmpty(p.Quirks)
	p.Examples = orEmpty(p.Examples)

	clampTrait(&p.Traits.Openness)
	clampTrait(&p.Traits.Expressiveness)
	clampTrait(&p.Traits.Humor)
	clampTrait(&p.Traits.Empathy)
	clampTrait(&p.Traits.Directness)
	clampTrait(&p.Traits.Enthusiasm)

	if p.Emotions.Primary == "" {
		p.Emotions.Primary = def.Emotions.Primary
	}
	p.Emotions.Secondary = orEmpty(p.Emotions.Secondary)
	p.Emotions.Triggers.Positive = orEmpty(p.Emotions.Triggers.Positive)
	p.Emotions.Triggers.Negative = orEmpty(p.Emotions.Triggers.Negative)

	p.Preferences.Topics = orEmpty(p.Preferences.Topics)
	p.Preferences.Avoids = orEmpty(p.Preferences.Avoids)
	p.Preferences.Engagement = orEmpty(p.Preferences.Engagement)

	if p.CommunicationPatterns.MessageLength == "" {
		p.CommunicationPatterns.MessageLength = def.CommunicationPatterns.MessageLength
	}
	if p.CommunicationPatterns.PunctuationStyle == "" {
		p.CommunicationPatterns.PunctuationStyle = def.CommunicationPatterns.PunctuationStyle
	}
	if p.CommunicationPatterns.Capitalization == "" {
		p.CommunicationPatterns.Capitalization = def.CommunicationPatterns.Capitalization
	}
	p.CommunicationPatterns.Abbreviations = orEmpty(p.CommunicationPatterns.Abbreviations)
	p.CommunicationPatterns.UniqueExpressions = orEmpty(p.CommunicationPatterns.UniqueExpressions)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clampTrait(v *int) {
	if *v < 1 {
		*v = 5
	}
	if *v > 10 {
		*v = 10
	}
}
