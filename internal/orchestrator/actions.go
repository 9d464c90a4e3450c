package orchestrator

import (
	"context"

	"github.com/Omarrvv/final-bot-sub005/internal/coreerr"
	"github.com/Omarrvv/final-bot-sub005/internal/dialog"
	"github.com/Omarrvv/final-bot-sub005/internal/session"
)

// executeAction runs the Dialog Manager's decision (§4.10 step 7): direct
// respond, a Knowledge/RAG call, or a Service Hub dispatch. Every branch
// degrades to a rendered apology rather than propagating a raw error to
// the caller, except where the taxonomy requires surfacing
// service_unavailable.
func (o *Orchestrator) executeAction(ctx context.Context, action dialog.Action, sessCtx *session.Context, utterance, language string) (string, []string, []int64, error) {
	switch action.Kind {
	case dialog.ActionRespond:
		text, suggestions := o.templates.Render(action.TemplateID, action.Params)
		return text, suggestions, nil, nil

	case dialog.ActionEnd:
		sessCtx.Dialog.FlowID = ""
		sessCtx.Dialog.NodeID = ""
		text, suggestions := o.templates.Render(action.TemplateID, action.Params)
		return text, suggestions, nil, nil

	case dialog.ActionPrompt:
		text, suggestions := o.templates.Render(promptTemplateID(action.Slot), action.Params)
		return text, suggestions, nil, nil

	case dialog.ActionTransferFlow:
		sessCtx.Dialog.FlowID = action.TargetFlow
		sessCtx.Dialog.NodeID = ""
		text, suggestions := o.templates.Render(action.TemplateID, action.Params)
		return text, suggestions, nil, nil

	case dialog.ActionCallService:
		return o.callService(ctx, action, sessCtx, utterance, language)

	default:
		text, suggestions := o.templates.Render("", nil)
		return text, suggestions, nil, coreerr.Internal(nil, "unrecognized dialog action kind %q", action.Kind)
	}
}

// callService dispatches an ActionCallService: the reserved
// knowledgeServiceName routes to the Knowledge Base (structured Lookup or
// RAG Answer, by Method); anything else is a registered Service Hub
// provider.
func (o *Orchestrator) callService(ctx context.Context, action dialog.Action, sessCtx *session.Context, utterance, language string) (string, []string, []int64, error) {
	if action.Service == knowledgeServiceName {
		return o.callKnowledge(ctx, action, sessCtx, utterance, language)
	}

	if o.hub == nil {
		text, suggestions := o.templates.Render("service_unavailable", action.Params)
		return text, suggestions, nil, coreerr.ServiceUnavailable(nil, "service hub not configured")
	}

	result, err := o.hub.Execute(ctx, action.Service, action.Method, action.Params)
	if err != nil {
		text, suggestions := o.templates.Render("service_unavailable", action.Params)
		return text, suggestions, nil, coreerr.ServiceUnavailable(err, "calling %s.%s", action.Service, action.Method)
	}

	text, suggestions := o.templates.Render(action.TemplateID, mergeParams(action.Params, map[string]any{"result": result}))
	return text, suggestions, nil, nil
}

func (o *Orchestrator) callKnowledge(ctx context.Context, action dialog.Action, sessCtx *session.Context, utterance, language string) (string, []string, []int64, error) {
	if o.knowledge == nil {
		text, suggestions := o.templates.Render("no_information", action.Params)
		return text, suggestions, nil, coreerr.ServiceUnavailable(nil, "knowledge base not configured")
	}

	if action.Method == lookupMethod {
		kind, _ := action.Params["kind"].(string)
		page, err := o.knowledge.Lookup(ctx, kind, stringFilters(action.Params), 0, 0, language)
		if err != nil {
			text, suggestions := o.templates.Render("no_information", action.Params)
			return text, suggestions, nil, coreerr.ServiceUnavailable(err, "looking up %s", kind)
		}

		names := make([]string, len(page.Items))
		ids := make([]int64, len(page.Items))
		for i, rec := range page.Items {
			names[i] = rec.NameIn(language, o.cfg.DefaultLanguage)
			ids[i] = rec.ID
		}
		text, suggestions := o.templates.Render(action.TemplateID, mergeParams(action.Params, map[string]any{"items": names}))
		return text, suggestions, ids, nil
	}

	history := historyFromSession(sessCtx)
	answer := o.knowledge.Answer(ctx, utterance, history, language)
	if answer.NoInformation {
		text, suggestions := o.templates.Render("no_information", action.Params)
		return text, suggestions, nil, nil
	}
	return answer.Answer, nil, answer.SourceIDs, nil
}
