package nlu

// defaultPrototypeUtterances backs DefaultPrototypes: a minimal built-in
// set of representative utterances per intent, covering the dialog flows
// a fresh install ships with. Deployments with a real intent catalog
// build their own []IntentPrototype from labeled training utterances
// using the same embedder.
var defaultPrototypeUtterances = map[string][]string{
	"greeting": {
		"hello",
		"hi there",
		"good morning",
		"hey",
	},
	"book_hotel": {
		"I want to book a hotel",
		"find me a place to stay",
		"reserve a room",
		"looking for accommodation",
	},
	"weather_query": {
		"what's the weather like",
		"is it going to rain",
		"weather forecast for today",
	},
	"attraction_info": {
		"tell me about the pyramids",
		"what can I visit nearby",
		"popular attractions",
		"things to see",
	},
	"goodbye": {
		"bye",
		"goodbye",
		"that's all thanks",
	},
}

// DefaultPrototypes embeds defaultPrototypeUtterances with embedder,
// averaging each intent's utterances into a single reference vector.
// embedder must match the one the Pipeline classifies against, since
// ClassifyIntent compares cosine similarity in the same space.
func DefaultPrototypes(embedder Embedder) []IntentPrototype {
	prototypes := make([]IntentPrototype, 0, len(defaultPrototypeUtterances))
	for intent, utterances := range defaultPrototypeUtterances {
		sum := make([]float32, embedder.Dimension())
		n := 0
		for _, u := range utterances {
			vec, err := embedder.Embed(u)
			if err != nil {
				continue
			}
			for i, v := range vec {
				sum[i] += v
			}
			n++
		}
		if n == 0 {
			continue
		}
		for i := range sum {
			sum[i] /= float32(n)
		}
		normalize(sum)
		prototypes = append(prototypes, IntentPrototype{Intent: intent, Embedding: sum})
	}
	return prototypes
}
