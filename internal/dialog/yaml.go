package dialog

import (
	"os"

	"gopkg.in/yaml.v3"
)

// defDocument is the on-disk shape of a flow definition file.
type defDocument struct {
	Flows []defFlow `yaml:"flows"`
}

type defFlow struct {
	ID        string    `yaml:"id"`
	EntryNode string    `yaml:"entry_node"`
	Nodes     []defNode `yaml:"nodes"`
}

type defNode struct {
	ID            string          `yaml:"id"`
	RequiredSlots []defSlot       `yaml:"required_slots"`
	Action        defAction       `yaml:"action"`
	Transitions   []defTransition `yaml:"transitions"`
}

type defSlot struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
}

type defAction struct {
	Kind       string         `yaml:"kind"`
	TemplateID string         `yaml:"template_id,omitempty"`
	Params     map[string]any `yaml:"params,omitempty"`
	Service    string         `yaml:"service,omitempty"`
	Method     string         `yaml:"method,omitempty"`
	TargetFlow string         `yaml:"target_flow,omitempty"`
}

type defTransition struct {
	Intent     string `yaml:"intent"`
	TargetNode string `yaml:"target_node,omitempty"`
	TargetFlow string `yaml:"target_flow,omitempty"`
}

// LoadFlowsFromYAML parses a flow-definition document into runtime Flows.
// It does not validate cross-references; call NewRegistry for that.
func LoadFlowsFromYAML(data []byte) ([]*Flow, error) {
	var doc defDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	flows := make([]*Flow, 0, len(doc.Flows))
	for _, df := range doc.Flows {
		flow := &Flow{
			ID:        df.ID,
			EntryNode: df.EntryNode,
			Nodes:     make(map[string]*Node, len(df.Nodes)),
		}
		for _, dn := range df.Nodes {
			node := &Node{
				ID:          dn.ID,
				Action:      toAction(dn.Action),
				Transitions: toTransitions(dn.Transitions),
			}
			for _, ds := range dn.RequiredSlots {
				node.RequiredSlots = append(node.RequiredSlots, Slot{Name: ds.Name, EntityType: ds.EntityType})
			}
			flow.Nodes[node.ID] = node
			flow.nodeOrder = append(flow.nodeOrder, node.ID)
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// LoadFlowsFromFile reads and parses a flow-definition YAML file.
func LoadFlowsFromFile(path string) ([]*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFlowsFromYAML(data)
}

func toAction(a defAction) Action {
	return Action{
		Kind:       ActionKind(a.Kind),
		TemplateID: a.TemplateID,
		Params:     a.Params,
		Service:    a.Service,
		Method:     a.Method,
		TargetFlow: a.TargetFlow,
	}
}

func toTransitions(defs []defTransition) []Transition {
	out := make([]Transition, 0, len(defs))
	for _, d := range defs {
		out = append(out, Transition{Intent: d.Intent, TargetNode: d.TargetNode, TargetFlow: d.TargetFlow})
	}
	return out
}
