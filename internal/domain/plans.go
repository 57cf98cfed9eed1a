package domain

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// FreePlanID is the plan every user falls back to.
const FreePlanID = "free"

// Billing intervals.
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Plan is a subscription tier.
type Plan struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Price           float64  `json:"price" yaml:"price"` // INR per interval
	Currency        string   `json:"currency" yaml:"currency"`
	Interval        string   `json:"interval" yaml:"interval"`
	TrialPeriodDays int      `json:"trialPeriodDays" yaml:"trialPeriodDays"`
	InvoiceLimit    int      `json:"invoiceLimit" yaml:"invoiceLimit"`   // per period, 0 = unlimited
	CustomerLimit   int      `json:"customerLimit" yaml:"customerLimit"` // 0 = unlimited
	Features        []string `json:"features" yaml:"features"`
	Popular         bool     `json:"popular" yaml:"popular"`
}

// IsFree reports whether the plan costs nothing.
func (p Plan) IsFree() bool {
	return p.Price == 0
}

// AmountMinor returns the price in the currency's minor unit (paise).
func (p Plan) AmountMinor() int64 {
	return int64(p.Price*100 + 0.5)
}

// PeriodEnd returns the end of a billing period starting at start.
func (p Plan) PeriodEnd(start time.Time) time.Time {
	if p.Interval == IntervalYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

//go:embed plans.yaml
var plansYAML []byte

var catalog = mustLoadPlans(plansYAML)

// LoadPlans parses a plan catalog document.
func LoadPlans(data []byte) ([]Plan, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Plans))
	hasFree := false
	for i := range doc.Plans {
		p := &doc.Plans[i]
		if p.ID == "" {
			return nil, fmt.Errorf("plan %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Price < 0 || p.TrialPeriodDays < 0 {
			return nil, fmt.Errorf("plan %q has negative price or trial", p.ID)
		}
		if p.Currency == "" {
			p.Currency = "INR"
		}
		if p.Interval == "" {
			p.Interval = IntervalMonthly
		}
		if p.ID == FreePlanID {
			if !p.IsFree() {
				return nil, fmt.Errorf("plan %q must be free", FreePlanID)
			}
			hasFree = true
		}
	}
	if !hasFree {
		return nil, fmt.Errorf("plan catalog has no %q plan", FreePlanID)
	}
	return doc.Plans, nil
}

func mustLoadPlans(data []byte) []Plan {
	plans, err := LoadPlans(data)
	if err != nil {
		panic(err)
	}
	return plans
}

// AvailablePlans returns all available plans.
func AvailablePlans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// GetPlan returns the plan for a given ID.
func GetPlan(id string) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FreePlan returns the fallback plan.
func FreePlan() Plan {
	p, _ := GetPlan(FreePlanID)
	return p
}
