package schema

// Analytics carries per-step or per-workflow measurements. Duration fields
// are ISO-8601 duration strings (see FormatISODuration). On workflow and
// activity definitions these are declared targets; on token history entries
// they are measured values.
type Analytics struct {
	ProcessTime            string          `json:"process_time,omitempty"`
	CycleTime              string          `json:"cycle_time,omitempty"`
	LeadTime               string          `json:"lead_time,omitempty"`
	WaitTime               string          `json:"wait_time,omitempty"`
	ValueAdded             *bool           `json:"value_added,omitempty"`
	WasteCategories        []WasteCategory `json:"waste_categories,omitempty"`
	Cost                   *Cost           `json:"cost,omitempty"`
	ResourceUtilization    *float64        `json:"resource_utilization,omitempty"`
	ErrorRate              *float64        `json:"error_rate,omitempty"`
	Throughput             *Throughput     `json:"throughput,omitempty"`
	ProcessCycleEfficiency *float64        `json:"process_cycle_efficiency,omitempty"`
}

// Cost is a monetary amount.
type Cost struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Throughput is a rate measurement.
type Throughput struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Period string  `json:"period,omitempty"`
}

// SLA is descriptive service-level metadata. The run loop never enforces it.
type SLA struct {
	ID               string            `json:"id,omitempty"`
	Name             string            `json:"name,omitempty"`
	TargetTime       string            `json:"target_time,omitempty"`
	MaxTime          string            `json:"max_time,omitempty"`
	EscalationPolicy *EscalationPolicy `json:"escalation_policy,omitempty"`
	Metrics          []SLAMetric       `json:"metrics,omitempty"`
}

// SLAMetric is a single named SLA target.
type SLAMetric struct {
	Name       string  `json:"name"`
	Target     float64 `json:"target"`
	Unit       string  `json:"unit,omitempty"`
	Comparison string  `json:"comparison,omitempty"`
}

// EscalationPolicy describes what happens as an SLA approaches breach.
type EscalationPolicy struct {
	WarningThreshold string   `json:"warning_threshold,omitempty"`
	WarningAction    string   `json:"warning_action,omitempty"`
	BreachAction     string   `json:"breach_action,omitempty"`
	NotifyRoles      []string `json:"notify_roles,omitempty"`
}
