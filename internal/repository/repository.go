package repository

import (
	"log/slog"

	"github.com/Omarrvv/final-bot-sub005/internal/batch"
	"github.com/Omarrvv/final-bot-sub005/internal/cache"
	"github.com/Omarrvv/final-bot-sub005/internal/dbcore"
)

// Entity kind identifiers, shared with the NLU entity canonicalization
// step (§4.6) and the Knowledge Base (§4.8).
const (
	KindAttraction          = "attraction"
	KindAccommodation       = "accommodation"
	KindRestaurant          = "restaurant"
	KindDestination         = "destination"
	KindEvent               = "event"
	KindTourPackage         = "tour_package"
	KindFAQ                 = "faq"
	KindPracticalInfo       = "practical_info"
	KindTransportationRoute = "transportation_route"
)

// Registry holds one Repository per knowledge entity kind.
type Registry struct {
	Attractions          Repository
	Accommodations       Repository
	Restaurants          Repository
	Destinations         Repository
	Events               Repository
	TourPackages         Repository
	FAQs                 Repository
	PracticalInfo        Repository
	TransportationRoutes Repository
}

// NewRegistry constructs a Repository for every known entity kind,
// sharing the same pool, cache, analyzer, and default language.
func NewRegistry(pool *dbcore.Pool, tieredCache *cache.TieredCache, analyzer *batch.Analyzer, defaultLanguage string, logger *slog.Logger) *Registry {
	return &Registry{
		Attractions:          New(pool, tieredCache, analyzer, "attractions", KindAttraction, defaultLanguage, logger),
		Accommodations:       New(pool, tieredCache, analyzer, "accommodations", KindAccommodation, defaultLanguage, logger),
		Restaurants:          New(pool, tieredCache, analyzer, "restaurants", KindRestaurant, defaultLanguage, logger),
		Destinations:         New(pool, tieredCache, analyzer, "destinations", KindDestination, defaultLanguage, logger),
		Events:               New(pool, tieredCache, analyzer, "events", KindEvent, defaultLanguage, logger),
		TourPackages:         New(pool, tieredCache, analyzer, "tour_packages", KindTourPackage, defaultLanguage, logger),
		FAQs:                 New(pool, tieredCache, analyzer, "faqs", KindFAQ, defaultLanguage, logger),
		PracticalInfo:        New(pool, tieredCache, analyzer, "practical_info", KindPracticalInfo, defaultLanguage, logger),
		TransportationRoutes: New(pool, tieredCache, analyzer, "transportation_routes", KindTransportationRoute, defaultLanguage, logger),
	}
}

// ByKind returns the Repository for kind, or nil if unknown.
func (r *Registry) ByKind(kind string) Repository {
	switch kind {
	case KindAttraction:
		return r.Attractions
	case KindAccommodation:
		return r.Accommodations
	case KindRestaurant:
		return r.Restaurants
	case KindDestination:
		return r.Destinations
	case KindEvent:
		return r.Events
	case KindTourPackage:
		return r.TourPackages
	case KindFAQ:
		return r.FAQs
	case KindPracticalInfo:
		return r.PracticalInfo
	case KindTransportationRoute:
		return r.TransportationRoutes
	default:
		return nil
	}
}
