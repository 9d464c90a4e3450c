package knowledge

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Omarrvv/final-bot-sub005/internal/repository"
)

// fuzzyThreshold is the minimum similarity score for a fuzzy match to be
// accepted in place of "none" (§4.8 Entity resolution).
const fuzzyThreshold = 0.85

// resolveTimeout bounds a resolution lookup when called from a context
// that carries no deadline of its own (the nlu.EntityResolver interface
// takes no context, since entity resolution there is a synchronous
// stage of the NLU pipeline; §4.6 keeps that interface narrow).
const resolveTimeout = 2 * time.Second

// Resolver implements nlu.EntityResolver over the repository layer: exact
// match on the multilingual name (current language, then default), with a
// fuzzy-match fallback via full-text search.
type Resolver struct {
	registry        *repository.Registry
	defaultLanguage string
}

// NewResolver constructs a Resolver over registry.
func NewResolver(registry *repository.Registry, defaultLanguage string) *Resolver {
	return &Resolver{registry: registry, defaultLanguage: defaultLanguage}
}

// Resolve implements nlu.EntityResolver, bounding the lookup with its own
// short-lived context since the interface carries none.
func (r *Resolver) Resolve(entityType, surfaceForm, language string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	return r.ResolveWithContext(ctx, entityType, surfaceForm, language)
}

// ResolveWithContext is §4.8's ResolveEntity(surface_form, kind, language):
// exact match on the multilingual name first, then fuzzy match with a
// required similarity floor.
func (r *Resolver) ResolveWithContext(ctx context.Context, kind, surfaceForm, language string) (string, bool) {
	if surfaceForm == "" {
		return "", false
	}

	bestID := ""
	bestScore := 0.0

	for _, candidateKind := range kindsForType(kind) {
		repo := r.registry.ByKind(candidateKind)
		if repo == nil {
			continue
		}

		page, err := repo.Search(ctx, surfaceForm, nil, 5, 0, language)
		if err != nil {
			continue
		}

		for _, rec := range page.Items {
			name := rec.NameIn(language, r.defaultLanguage)
			if strings.EqualFold(name, surfaceForm) {
				return canonicalID(candidateKind, rec.ID), true
			}
			if score := similarity(surfaceForm, name); score > bestScore {
				bestScore = score
				bestID = canonicalID(candidateKind, rec.ID)
			}
		}
	}

	if bestScore >= fuzzyThreshold {
		return bestID, true
	}
	return "", false
}

// kindsForType maps an NLU entity type (e.g. "place") to the repository
// kinds worth searching. A kind name passed directly (e.g. from a
// dialog-driven lookup that already knows the exact entity kind) searches
// only that kind.
func kindsForType(entityType string) []string {
	switch entityType {
	case "place":
		return []string{repository.KindDestination, repository.KindAttraction, repository.KindAccommodation}
	case "food", "cuisine":
		return []string{repository.KindRestaurant}
	case "":
		return RelevantKinds
	default:
		for _, k := range RelevantKinds {
			if k == entityType {
				return []string{entityType}
			}
		}
		return RelevantKinds
	}
}

func canonicalID(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}
