package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Usage counter keys, in display order.
var UsageKeys = []string{"cvs", "matches", "tailored", "exports"}

type TierSpec struct {
	PriceMonthly      float64        `yaml:"price_monthly" json:"price_monthly"`
	MatcherVersion    string         `yaml:"matcher_version" json:"matcher_version"`
	Limits            map[string]int `yaml:"limits" json:"limits"`
	UpgradeTo         string         `yaml:"upgrade_to" json:"upgrade_to,omitempty"`
	APIAccess         bool           `yaml:"api_access" json:"api_access,omitempty"`
	TeamCollaboration bool           `yaml:"team_collaboration" json:"team_collaboration,omitempty"`
}

type PlanSpec struct {
	Tier          string `yaml:"tier"`
	BillingCycle  string `yaml:"billing_cycle"`
	PayPalPlanEnv string `yaml:"paypal_plan_env"`

	// PayPalPlanID is resolved from PayPalPlanEnv at load time.
	PayPalPlanID string `yaml:"-"`
}

type PlanCatalog struct {
	TierOrder []string            `yaml:"tier_order"`
	Tiers     map[string]TierSpec `yaml:"tiers"`
	Plans     map[string]PlanSpec `yaml:"plans"`
	Features  map[string]string   `yaml:"features"`
}

// LoadPlans parses the embedded catalog and resolves PayPal plan ids from the environment.
func LoadPlans() (*PlanCatalog, error) {
	return parsePlans(plansYAML, os.Getenv)
}

func parsePlans(data []byte, getenv func(string) string) (*PlanCatalog, error) {
	var c PlanCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	if len(c.TierOrder) == 0 {
		return nil, errors.New("plans: tier_order is required")
	}
	for _, t := range c.TierOrder {
		if _, ok := c.Tiers[t]; !ok {
			return nil, fmt.Errorf("plans: tier %q has no spec", t)
		}
	}
	for key, p := range c.Plans {
		if _, ok := c.Tiers[p.Tier]; !ok {
			return nil, fmt.Errorf("plans: plan %q references unknown tier %q", key, p.Tier)
		}
		if p.PayPalPlanEnv != "" {
			p.PayPalPlanID = strings.TrimSpace(getenv(p.PayPalPlanEnv))
		}
		c.Plans[key] = p
	}
	return &c, nil
}

// Tier returns the spec for name, falling back to free for unknown names.
func (c *PlanCatalog) Tier(name string) TierSpec {
	if t, ok := c.Tiers[name]; ok {
		return t
	}
	return c.Tiers[TierFree]
}

// Rank is the position of tier in the upgrade order, -1 when unknown.
func (c *PlanCatalog) Rank(tier string) int {
	for i, t := range c.TierOrder {
		if t == tier {
			return i
		}
	}
	return -1
}

func (c *PlanCatalog) ValidTier(tier string) bool { return c.Rank(tier) >= 0 }

// UsageKey maps a feature name to its usage counter key.
func (c *PlanCatalog) UsageKey(feature string) (string, bool) {
	k, ok := c.Features[feature]
	return k, ok
}

// TierForPayPalPlan infers tier and billing cycle from a PayPal plan id.
func (c *PlanCatalog) TierForPayPalPlan(planID string) (tier, cycle string) {
	for _, p := range c.Plans {
		if p.PayPalPlanID != "" && p.PayPalPlanID == planID {
			return p.Tier, p.BillingCycle
		}
	}
	upper := strings.ToUpper(planID)
	tier = TierBasic
	if strings.Contains(upper, "PRO") {
		tier = TierPro
	}
	cycle = "monthly"
	if strings.Contains(upper, "YEARLY") {
		cycle = "yearly"
	}
	return tier, cycle
}
