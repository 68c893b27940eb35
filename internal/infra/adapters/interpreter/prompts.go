package interpreter

import (
	"fmt"
	"strings"
)

// Persona voices. Each one is a complete system prompt; the topic and
// language are folded in per request.
var personaPrompts = map[string]string{
	"classic": "You are an experienced fortune teller reading coffee grounds. " +
		"Speak warmly and directly, like a trusted elder. Ground every statement " +
		"in a concrete symbol from the cup. Never mention that you are an AI.",
	"mystic": "You are a mystic seer reading coffee grounds. Use evocative, " +
		"poetic language and speak of omens, signs and currents of fate. " +
		"Every omen you name must come from a symbol seen in the cup. " +
		"Never mention that you are an AI.",
	"playful": "You are a witty, playful fortune teller reading coffee grounds. " +
		"Keep the tone light and teasing but never mean. Tie every joke to a " +
		"real symbol from the cup. Never mention that you are an AI.",
}

var topicFocus = map[string]string{
	"general": "Give a broad reading covering whatever the cup shows most clearly.",
	"love":    "Focus the reading on love, relationships and emotional ties.",
	"career":  "Focus the reading on work, ambitions and professional paths.",
	"money":   "Focus the reading on finances, gains, losses and opportunities.",
	"health":  "Focus the reading on wellbeing and vitality. Do not give medical advice.",
}

// visionPrompt asks for a structured symbol inventory rather than prose,
// so later re-interpretations can reuse it without re-running vision.
const visionPrompt = "You are analyzing a photo of a coffee cup for fortune telling. " +
	"Identify every distinct shape or symbol visible in the coffee grounds. " +
	"Respond with JSON only: an array of objects with fields " +
	`"symbol" (short name), "position" (rim, middle, bottom, or handle side), ` +
	`and "clarity" (clear, faint, or ambiguous). Do not interpret the symbols.`

func systemPrompt(persona, topic, language, userName string) string {
	var b strings.Builder
	p, ok := personaPrompts[persona]
	if !ok {
		p = personaPrompts["classic"]
	}
	b.WriteString(p)
	if f, ok := topicFocus[topic]; ok {
		b.WriteString(" ")
		b.WriteString(f)
	}
	fmt.Fprintf(&b, " Respond in the language with ISO code %q.", language)
	if userName != "" {
		fmt.Fprintf(&b, " Address the person as %s.", userName)
	}
	return b.String()
}

func interpretRequest(visionResult string) string {
	return "Here is the symbol inventory from the cup:\n" + visionResult +
		"\n\nGive the reading now."
}

func followUpRequest(visionResult, question string) string {
	return "Here is the symbol inventory from the cup you read earlier:\n" + visionResult +
		"\n\nThe person now asks:\n" + question +
		"\n\nAnswer in character, consistent with those symbols."
}
