package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	applog "github.com/Omarrvv/final-bot-sub005/pkg/logger"

	"github.com/Omarrvv/final-bot-sub005/internal/analytics"
	"github.com/Omarrvv/final-bot-sub005/internal/coreerr"
	"github.com/Omarrvv/final-bot-sub005/internal/dialog"
	"github.com/Omarrvv/final-bot-sub005/internal/knowledge"
	"github.com/Omarrvv/final-bot-sub005/internal/nlu"
	"github.com/Omarrvv/final-bot-sub005/internal/servicehub"
	"github.com/Omarrvv/final-bot-sub005/internal/session"
)

// messageMaxBytes bounds the request envelope's message field (§6).
const messageMaxBytes = 1024

// knowledgeServiceName is the reserved Service Hub name an Action dispatches
// to for Knowledge Base / RAG calls, distinguishing them from a registered
// outbound Provider (§4.10 step 7: "call Knowledge/RAG; or call a Service").
const knowledgeServiceName = "knowledge"

// lookupMethod selects a structured Lookup over Answer's RAG pipeline when
// a dialog Action targets the knowledge service.
const lookupMethod = "lookup"

// Orchestrator wires every component touched by one user turn and drives
// the lifecycle described in §4.10.
type Orchestrator struct {
	sessions  *session.Store
	nlu       *nlu.Pipeline
	dialog    *dialog.Manager
	knowledge *knowledge.Base
	hub       *servicehub.Hub
	templates *TemplateStore
	events    *analytics.Emitter
	cfg       Config
	validator *validator.Validate
	logger    *slog.Logger
}

// New constructs an Orchestrator. Any dependency left nil behaves as an
// always-unavailable backend for the corresponding action (exercised in
// tests without a full stack).
func New(
	sessions *session.Store,
	nluPipeline *nlu.Pipeline,
	dialogManager *dialog.Manager,
	knowledgeBase *knowledge.Base,
	hub *servicehub.Hub,
	templates *TemplateStore,
	events *analytics.Emitter,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  sessions,
		nlu:       nluPipeline,
		dialog:    dialogManager,
		knowledge: knowledgeBase,
		hub:       hub,
		templates: templates,
		events:    events,
		cfg:       cfg,
		validator: newRequestValidator(cfg),
		logger:    logger,
	}
}

// newRequestValidator builds the Request struct validator (§6, §7
// bad_input): message_max_bytes enforces messageMaxBytes, supported_language
// enforces cfg's allow-list, closing over cfg since it isn't expressible as
// a static tag parameter.
func newRequestValidator(cfg Config) *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("message_max_bytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= messageMaxBytes
	})
	_ = v.RegisterValidation("supported_language", func(fl validator.FieldLevel) bool {
		return cfg.languageSupported(fl.Field().String())
	})
	return v
}

// Handle runs the full per-turn lifecycle (§4.10 steps 1-10). Exactly one
// analytics event is emitted per call, on every exit path.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	correlationID := applog.GenerateCorrelationID()
	ctx = applog.WithCorrelationID(ctx, correlationID)
	log := applog.FromContext(ctx, o.logger)

	if err := o.validate(req); err != nil {
		o.emit(req.SessionID, "", nil, start, analytics.OutcomeError, err)
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestDeadline)
	defer cancel()

	if ctx.Err() != nil {
		err := coreerr.Timeout(ctx.Err(), "turn deadline elapsed before dispatch").WithCorrelationID(correlationID)
		o.emit(req.SessionID, "", nil, start, analytics.OutcomeTimeout, err)
		return Response{}, err
	}

	sessionID, sessCtx, err := o.loadOrCreateSession(ctx, req)
	if err != nil {
		o.emit(req.SessionID, "", nil, start, analytics.OutcomeError, err)
		return Response{}, err
	}

	language := o.resolveLanguage(req, sessCtx)

	result := o.nlu.Process(ctx, req.Message, language)
	language = result.Language
	if language == "" {
		language = o.cfg.DefaultLanguage
	}
	sessCtx.Language = language

	turn := session.Turn{Utterance: req.Message, Intent: result.Intent, Timestamp: time.Now()}
	sessCtx.AppendTurn(turn, o.cfg.SlotMaxAge)

	if saveErr := o.sessions.Save(ctx, sessionID, sessCtx, false); saveErr != nil {
		log.Warn("orchestrator interim session save failed", "session_id", sessionID, "error", saveErr)
	}

	if ctx.Err() != nil {
		return o.abortTimeout(ctx, sessionID, sessCtx, result, start, correlationID)
	}

	action := o.dialog.Decide(ctx, result, sessCtx)

	text, suggestions, sourceIDs, actionErr := o.executeAction(ctx, action, sessCtx, req.Message, language)

	if len(sessCtx.History) > 0 {
		sessCtx.History[len(sessCtx.History)-1].Response = text
	}

	outcome := analytics.OutcomeSuccess
	var reportedErr error
	switch {
	case ctx.Err() != nil:
		sessCtx.Incomplete = true
		outcome = analytics.OutcomeTimeout
		reportedErr = coreerr.Timeout(ctx.Err(), "turn deadline elapsed during action execution").WithCorrelationID(correlationID)
	case actionErr != nil:
		outcome = analytics.OutcomeError
		reportedErr = actionErr
	}

	if saveErr := o.sessions.Save(ctx, sessionID, sessCtx, false); saveErr != nil {
		log.Warn("orchestrator final session save failed", "session_id", sessionID, "error", saveErr)
	}

	o.emit(sessionID, result.Intent, entityTypes(result), start, outcome, reportedErr)

	if reportedErr != nil && outcome == analytics.OutcomeTimeout {
		return Response{}, reportedErr
	}

	var debugInfo map[string]any
	if len(sourceIDs) > 0 {
		debugInfo = map[string]any{"source_ids": sourceIDs}
	}

	responseType := ResponseText
	if actionErr != nil {
		responseType = ResponseError
	}

	return Response{
		SessionID:    sessionID,
		Text:         text,
		ResponseType: responseType,
		Language:     language,
		Suggestions:  suggestions,
		DebugInfo:    debugInfo,
	}, nil
}

// validate enforces the request envelope's schema constraints (§6, §7
// bad_input) via struct tags on Request.
func (o *Orchestrator) validate(req Request) error {
	err := o.validator.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return coreerr.BadInput("invalid request: %v", err)
	}
	return fieldValidationError(fieldErrs[0], req)
}

// fieldValidationError renders the first failing validator.FieldError in
// the same terms the bad_input outcome has always reported (§7).
func fieldValidationError(fe validator.FieldError, req Request) error {
	switch fe.Tag() {
	case "message_max_bytes":
		return coreerr.BadInput("message exceeds %d bytes", messageMaxBytes)
	case "supported_language":
		return coreerr.BadInput("language %q is not supported", req.Language)
	default:
		return coreerr.BadInput("field %q failed validation %q", fe.Field(), fe.Tag())
	}
}

// loadOrCreateSession derives or creates a session id and loads its context
// (§4.10 step 1). A presented session id with no live context surfaces as
// session_expired (§7).
func (o *Orchestrator) loadOrCreateSession(ctx context.Context, req Request) (string, *session.Context, error) {
	if req.SessionID == "" {
		language := req.Language
		if language == "" {
			language = o.cfg.DefaultLanguage
		}
		id, err := o.sessions.Create(ctx, nil, language, false)
		if err != nil {
			return "", nil, coreerr.Internal(err, "creating session")
		}
		sessCtx, err := o.sessions.Get(ctx, id)
		if err != nil {
			return "", nil, coreerr.Internal(err, "loading newly created session")
		}
		return id, sessCtx, nil
	}

	sessCtx, err := o.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return "", nil, coreerr.Internal(err, "loading session")
	}
	if sessCtx == nil {
		return "", nil, coreerr.SessionExpired("no live context for session %q", req.SessionID)
	}
	return req.SessionID, sessCtx, nil
}

// resolveLanguage picks the language passed into NLU (§4.10 step 3):
// explicit request parameter, then session preference, then the configured
// default. NLU detection itself refines this further via result.Language.
func (o *Orchestrator) resolveLanguage(req Request, sessCtx *session.Context) string {
	if req.Language != "" {
		return req.Language
	}
	if sessCtx.Language != "" {
		return sessCtx.Language
	}
	return o.cfg.DefaultLanguage
}

// abortTimeout is taken when the deadline elapses immediately after the
// interim save (§4.10 Cancellation): persist a partial context marked
// incomplete and emit a timeout outcome.
func (o *Orchestrator) abortTimeout(ctx context.Context, sessionID string, sessCtx *session.Context, result nlu.Result, start time.Time, correlationID string) (Response, error) {
	sessCtx.Incomplete = true
	if saveErr := o.sessions.Save(context.Background(), sessionID, sessCtx, false); saveErr != nil {
		o.logger.Warn("orchestrator timeout-path session save failed", "session_id", sessionID, "error", saveErr)
	}
	err := coreerr.Timeout(ctx.Err(), "turn deadline elapsed before dialog decision").WithCorrelationID(correlationID)
	o.emit(sessionID, result.Intent, entityTypes(result), start, analytics.OutcomeTimeout, err)
	return Response{}, err
}

func (o *Orchestrator) emit(sessionID, intent string, entities []string, start time.Time, outcome string, err error) {
	if o.events == nil {
		return
	}
	errorKind := ""
	if err != nil {
		errorKind = string(coreerr.KindOf(err))
	}
	o.events.Emit(analytics.Event{
		SessionID: sessionID,
		Intent:    intent,
		Entities:  entities,
		LatencyMS: time.Since(start).Milliseconds(),
		Outcome:   outcome,
		ErrorKind: errorKind,
	})
}

func entityTypes(result nlu.Result) []string {
	if len(result.Entities) == 0 {
		return nil
	}
	types := make([]string, len(result.Entities))
	for i, e := range result.Entities {
		types[i] = e.Type
	}
	return types
}

func mergeParams(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func stringFilters(params map[string]any) map[string]string {
	filters := make(map[string]string, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			filters[k] = s
		}
	}
	return filters
}

func historyFromSession(sessCtx *session.Context) []knowledge.HistoryTurn {
	turns := sessCtx.RecentHistory(4)
	history := make([]knowledge.HistoryTurn, 0, len(turns))
	for _, t := range turns {
		history = append(history, knowledge.HistoryTurn{Utterance: t.Utterance, Response: t.Response})
	}
	return history
}

func promptTemplateID(slot string) string {
	return fmt.Sprintf("prompt_%s", slot)
}
