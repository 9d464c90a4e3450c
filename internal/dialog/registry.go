package dialog

import "fmt"

// ValidationError describes one undefined reference found while validating
// a set of flows, in the style of routing.TreeValidationError.
type ValidationError struct {
	Flow    string
	Node    string
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("flow %q node %q: %s", e.Flow, e.Node, e.Message)
}

// Registry holds every loaded flow, indexed by id. A Registry is only ever
// constructed via NewRegistry, which guarantees every transition target
// exists: per §4.7, an undefined transition target is a programming error
// caught at startup, never at runtime.
type Registry struct {
	flows map[string]*Flow
}

// NewRegistry validates flows and returns a Registry, or the list of
// validation errors found (fatal at startup; the caller should log.Fatal).
func NewRegistry(flows []*Flow) (*Registry, []ValidationError) {
	r := &Registry{flows: make(map[string]*Flow, len(flows))}
	for _, f := range flows {
		r.flows[f.ID] = f
	}

	var errs []ValidationError
	for _, f := range flows {
		if f.EntryNode == "" {
			errs = append(errs, ValidationError{Flow: f.ID, Message: "flow has no entry_node"})
		} else if _, ok := f.Nodes[f.EntryNode]; !ok {
			errs = append(errs, ValidationError{Flow: f.ID, Node: f.EntryNode, Message: "entry_node not defined in flow"})
		}

		for _, nodeID := range f.nodeOrder {
			node := f.Nodes[nodeID]
			for _, t := range node.Transitions {
				if t.TargetFlow != "" {
					if _, ok := r.flows[t.TargetFlow]; !ok {
						errs = append(errs, ValidationError{
							Flow: f.ID, Node: node.ID,
							Message: fmt.Sprintf("transition on intent %q targets undefined flow %q", t.Intent, t.TargetFlow),
						})
					}
					continue
				}
				if t.TargetNode == "" {
					errs = append(errs, ValidationError{Flow: f.ID, Node: node.ID, Message: fmt.Sprintf("transition on intent %q has no target", t.Intent)})
					continue
				}
				if _, ok := f.Nodes[t.TargetNode]; !ok {
					errs = append(errs, ValidationError{
						Flow: f.ID, Node: node.ID,
						Message: fmt.Sprintf("transition on intent %q targets undefined node %q", t.Intent, t.TargetNode),
					})
				}
			}
		}
	}

	if !r.hasFallback() {
		errs = append(errs, ValidationError{Message: fmt.Sprintf("no %q flow defined; every registry needs a global fallback", FallbackFlowID)})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

func (r *Registry) hasFallback() bool {
	_, ok := r.flows[FallbackFlowID]
	return ok
}

// Flow returns the named flow, or false if it does not exist.
func (r *Registry) Flow(id string) (*Flow, bool) {
	f, ok := r.flows[id]
	return f, ok
}

// Fallback returns the global fallback flow, guaranteed present after a
// successful NewRegistry.
func (r *Registry) Fallback() *Flow {
	return r.flows[FallbackFlowID]
}
