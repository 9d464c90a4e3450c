// Package knowledge implements the Knowledge Base & RAG (§4.8): structured
// lookup, entity resolution against the repository layer, and a
// retrieval-augmented generation pipeline dispatched through the Service
// Hub's LLM provider.
package knowledge

import "github.com/Omarrvv/final-bot-sub005/internal/repository"

// RelevantKinds are the entity kinds considered for RAG candidate
// retrieval and entity resolution when a caller does not narrow to one
// specific kind.
var RelevantKinds = []string{
	repository.KindDestination,
	repository.KindAttraction,
	repository.KindAccommodation,
	repository.KindRestaurant,
	repository.KindEvent,
	repository.KindTourPackage,
	repository.KindFAQ,
	repository.KindPracticalInfo,
}

// Candidate is one record considered during RAG retrieval, carrying both
// the raw vector score and the recency-adjusted score used for the final
// ranking (§4.8 RAG pipeline step c).
type Candidate struct {
	Kind        string
	Record      repository.Record
	VectorScore float64
	Recency     float64
	FinalScore  float64
}

// HistoryTurn is the minimal shape the RAG prompt assembler needs from the
// rolling conversation history; callers adapt session.Turn into this to
// avoid knowledge depending on the session package.
type HistoryTurn struct {
	Utterance string
	Response  string
}

// AnswerResult is the RAG pipeline's output (§4.8 Answer).
type AnswerResult struct {
	Answer        string
	SourceIDs     []int64
	NoInformation bool
}

// NoInformationAnswer is rendered by the response generator as an apology
// when the candidate set is empty (§4.8 Failure semantics).
func NoInformationAnswer() AnswerResult {
	return AnswerResult{NoInformation: true}
}
