package models

import "time"

// Credential statuses.
const (
	CredentialActive   = "active"
	CredentialInactive = "inactive"
)

// Budget statuses.
const (
	BudgetActive   = "active"
	BudgetExceeded = "exceeded"
)

// Request record statuses.
const (
	RequestSuccess = "success"
	RequestCached  = "cached"
	RequestError   = "error"
)

// Credential is a provider API key owned by an account. The secret is stored
// encrypted and is only decrypted transiently for bearer comparison and
// upstream forwarding; it must never be logged.
type Credential struct {
	ID              string
	OwnerID         string
	Provider        string
	EncryptedSecret string
	Status          string
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

// RuleConditions is the structured predicate attached to an optimization rule.
// All fields are optional; an absent field does not constrain the rule.
type RuleConditions struct {
	MaxPromptChars    *int     `json:"max_prompt_chars,omitempty"`
	RequiredKeywords  []string `json:"required_keywords,omitempty"`
	TimeWindow        string   `json:"time_window,omitempty"`
	MaxCostPerRequest *float64 `json:"max_cost_per_request,omitempty"`
	RequestType       string   `json:"request_type,omitempty"`
	FallbackChain     []string `json:"fallback_chain,omitempty"`
}

// Time window names accepted in RuleConditions.TimeWindow.
const (
	WindowOffPeak       = "off-peak"
	WindowBusinessHours = "business-hours"
	WindowPeak          = "peak"
)

// Rule routes requests declared for SourceModel to the cheaper TargetModel
// when its conditions hold. Routing is single-hop: a routed model is never
// re-evaluated against other rules.
type Rule struct {
	ID                 string
	OwnerID            string
	SourceModel        string
	TargetModel        string
	Conditions         RuleConditions
	Enabled            bool
	Priority           int
	AccumulatedSavings float64
}

// Budget is a spend ceiling with an alert threshold independent of the hard
// limit. Status flips to exceeded once spend passes the limit and never
// reverts automatically.
type Budget struct {
	ID             string
	OwnerID        string
	LimitUSD       float64
	AlertThreshold float64
	CurrentSpend   float64
	Status         string
}

// RequestRecord is the append-only audit row written once per inbound call.
type RequestRecord struct {
	ID           string
	RequestID    string
	OwnerID      string
	CredentialID string
	Provider     string
	Model        string
	TokensUsed   int
	CostUSD      float64
	SavingsUSD   float64
	LatencyMs    int
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
}
