// Package rules evaluates an account's optimization rules against a request
// and decides whether to substitute a cheaper target model. Evaluation is a
// pure function over an immutable snapshot of rules fetched once per request;
// routing is single-hop and first-match-wins.
package rules

import (
	"strings"
	"time"

	"github.com/costpilot/gateway/internal/shared/models"
)

// Decision is the outcome of evaluating a rule snapshot.
type Decision struct {
	Applied       bool
	RuleID        string
	OriginalModel string
	Model         string
}

// Request carries the per-request facts conditions are checked against.
type Request struct {
	Model         string
	Prompt        string
	EstimatedCost float64
	Now           time.Time
}

// Evaluate walks enabled rules in stored order and applies the first one
// whose source model equals the declared model and whose conditions all hold.
// When nothing matches the model passes through unchanged.
func Evaluate(snapshot []models.Rule, req Request) Decision {
	for _, r := range snapshot {
		if !r.Enabled || r.SourceModel != req.Model {
			continue
		}
		if !conditionsHold(r.Conditions, req) {
			continue
		}
		return Decision{
			Applied:       true,
			RuleID:        r.ID,
			OriginalModel: req.Model,
			Model:         r.TargetModel,
		}
	}
	return Decision{OriginalModel: req.Model, Model: req.Model}
}

func conditionsHold(c models.RuleConditions, req Request) bool {
	// Prompts at or above the limit do not qualify; the bound is exclusive.
	if c.MaxPromptChars != nil && len(req.Prompt) >= *c.MaxPromptChars {
		return false
	}
	if len(c.RequiredKeywords) > 0 && !anyKeyword(c.RequiredKeywords, req.Prompt) {
		return false
	}
	if c.TimeWindow != "" && !inWindow(c.TimeWindow, req.Now) {
		return false
	}
	if c.MaxCostPerRequest != nil && req.EstimatedCost > *c.MaxCostPerRequest {
		return false
	}
	return true
}

func anyKeyword(keywords []string, prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// inWindow checks the current UTC hour against the named band. The bands are
// inclusive on both ends, so business-hours and peak overlap at 17 and
// off-peak and peak overlap at 22; that overlap is intentional.
func inWindow(window string, now time.Time) bool {
	hour := now.UTC().Hour()
	switch window {
	case models.WindowOffPeak:
		return hour >= 22 || hour <= 5
	case models.WindowBusinessHours:
		return hour >= 9 && hour <= 17
	case models.WindowPeak:
		return hour >= 17 && hour <= 22
	default:
		// Unknown window names do not constrain the rule.
		return true
	}
}
