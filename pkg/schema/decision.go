package schema

// DecisionNode is a rule-table-driven branch point in the graph.
type DecisionNode struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	DecisionTable       DecisionTable `json:"decision_table"`
	DefaultOutputEdgeID string        `json:"default_output_edge_id,omitempty"`
}

// DecisionTable holds the ordered columns and rules of a decision node.
type DecisionTable struct {
	HitPolicy HitPolicy      `json:"hit_policy,omitempty"`
	Inputs    []TableColumn  `json:"inputs,omitempty"`
	Outputs   []TableColumn  `json:"outputs,omitempty"`
	Rules     []DecisionRule `json:"rules,omitempty"`
}

// DecisionRule matches positional string entries against the table's input
// columns and names the edge to follow when it wins.
type DecisionRule struct {
	ID            string   `json:"id,omitempty"`
	Description   string   `json:"description,omitempty"`
	InputEntries  []string `json:"input_entries,omitempty"`
	OutputEntries []any    `json:"output_entries,omitempty"`
	OutputEdgeID  string   `json:"output_edge_id"`
}

// TableColumn names a decision table column. Input column names are looked
// up in the invoking token's data.
type TableColumn struct {
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	Type          string `json:"type,omitempty"`
	AllowedValues []any  `json:"allowed_values,omitempty"`
}
