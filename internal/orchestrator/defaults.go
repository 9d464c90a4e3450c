package orchestrator

import "text/template"

// defaultTemplateSources backs NewDefaultTemplateStore: a minimal built-in
// set covering the ids the rest of the core falls back to by convention
// (no_information, service_unavailable) plus a couple of illustrative
// conversational ones. Deployments load their real catalog via
// LoadTemplatesFromFile; this is what a fresh install runs with.
var defaultTemplateSources = map[string]defTemplate{
	"greeting": {
		ID:          "greeting",
		Text:        "Hello! I can help you plan your trip. What would you like to know?",
		Suggestions: []string{"Find hotels", "Popular attractions", "Local cuisine"},
	},
	"fallback_apology": {
		ID:          "fallback_apology",
		Text:        "I didn't quite understand that. Could you rephrase?",
		Suggestions: []string{"Find hotels", "Popular attractions"},
	},
	"no_information": {
		ID:   "no_information",
		Text: "I don't have information about that yet.",
	},
	"service_unavailable": {
		ID:   "service_unavailable",
		Text: "That service isn't available right now. Please try again shortly.",
	},
	"prompt_city": {
		ID:   "prompt_city",
		Text: "Sure, which city are you looking to stay in?",
	},
	"city_booked": {
		ID:          "city_booked",
		Text:        "Got it, looking for places to stay.",
		Suggestions: []string{"Show hotel options"},
	},
	"hotel_results": {
		ID:   "hotel_results",
		Text: "Here's what I found: {{.items}}",
	},
	"weather_result": {
		ID:   "weather_result",
		Text: "Here's the forecast: {{.result}}",
	},
	"attraction_list": {
		ID:   "attraction_list",
		Text: "Some attractions you might enjoy: {{.items}}",
	},
	"farewell": {
		ID:   "farewell",
		Text: "Safe travels! Let me know if you need anything else.",
	},
}

// NewDefaultTemplateStore builds the built-in template catalog.
func NewDefaultTemplateStore() *TemplateStore {
	templates := make(map[string]*ResponseTemplate, len(defaultTemplateSources))
	for id, src := range defaultTemplateSources {
		parsed := template.Must(template.New(id).Parse(src.Text))
		templates[id] = &ResponseTemplate{ID: id, Text: parsed, Suggestions: src.Suggestions}
	}
	return NewTemplateStore(templates)
}
