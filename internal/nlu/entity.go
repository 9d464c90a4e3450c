package nlu

import (
	"strings"
	"unicode"
)

// EntityExtractor tags candidate entities in text for the given language.
type EntityExtractor interface {
	Extract(text, language string) ([]Entity, error)
}

// EntityResolver canonicalizes a surface-form entity against the
// knowledge base (§4.8), e.g. "Giza" -> city id 12. Implemented by the
// knowledge package; nlu only depends on this interface to avoid an
// import cycle.
type EntityResolver interface {
	Resolve(entityType, surfaceForm, language string) (canonical string, ok bool)
}

// capitalizedSpanTagger is a dependency-free tagger: it treats runs of
// capitalized words as candidate "place" entities. The pack ships no
// language-specific NER model, so this fills the same interface slot.
type capitalizedSpanTagger struct{}

// NewCapitalizedSpanTagger constructs the default tagger.
func NewCapitalizedSpanTagger() EntityExtractor {
	return capitalizedSpanTagger{}
}

func (capitalizedSpanTagger) Extract(text, _ string) ([]Entity, error) {
	var entities []Entity
	words := strings.Fields(text)

	pos := 0
	var spanStart, spanLen int
	var spanWords []string

	flush := func() {
		if len(spanWords) == 0 {
			return
		}
		surface := strings.Join(spanWords, " ")
		entities = append(entities, Entity{
			Type:      "place",
			Surface:   surface,
			Canonical: surface,
			SpanStart: spanStart,
			SpanEnd:   spanStart + spanLen,
		})
		spanWords = nil
	}

	for _, w := range words {
		wordStart := strings.Index(text[pos:], w) + pos
		pos = wordStart + len(w)

		if isCapitalized(w) {
			if len(spanWords) == 0 {
				spanStart = wordStart
				spanLen = 0
			}
			spanWords = append(spanWords, w)
			spanLen = (wordStart + len(w)) - spanStart
		} else {
			flush()
		}
	}
	flush()

	return entities, nil
}

func isCapitalized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

// CanonicalizeEntities resolves each entity's surface form against
// resolver, leaving unresolved entities with surface form only (§4.6
// Algorithm step 3).
func CanonicalizeEntities(entities []Entity, resolver EntityResolver, language string) []Entity {
	if resolver == nil {
		return entities
	}
	out := make([]Entity, len(entities))
	for i, e := range entities {
		if canonical, ok := resolver.Resolve(e.Type, e.Surface, language); ok {
			e.Canonical = canonical
		} else if e.Canonical == "" {
			e.Canonical = e.Surface
		}
		out[i] = e
	}
	return out
}
