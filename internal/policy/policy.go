// Package policy holds the expected-value rules a gateway response must
// satisfy in each phase of a checkout. Rules are govaluate expressions over a
// flat parameter map built by the adapter.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Parameter names available to rule expressions.
const (
	ParamResultCode          = "resultCode"
	ParamExpectedCode        = "expectedCode"
	ParamPaymentType         = "paymentType"
	ParamExpectedPaymentType = "expectedPaymentType"
	ParamNDC                 = "ndc"
	ParamCheckoutID          = "checkoutId"
	ParamAmount              = "amount"     // minor units, float64
	ParamOrderTotal          = "orderTotal" // minor units, float64
	ParamCurrency            = "currency"
	ParamOrderCurrency       = "orderCurrency"
)

// Rule is a single named boolean expression.
type Rule struct {
	ID         string
	Expression string
}

// Violation names a rule the response did not satisfy.
type Violation struct {
	RuleID     string
	Expression string
}

type compiledRule struct {
	Rule
	expr *govaluate.EvaluableExpression
}

// RuleSet is an ordered, compiled list of rules for one phase.
type RuleSet struct {
	name  string
	rules []compiledRule
}

var (
	ruleResultCode  = Rule{ID: "result_code", Expression: "resultCode == expectedCode"}
	rulePaymentType = Rule{ID: "payment_type", Expression: "paymentType == expectedPaymentType"}
	ruleCheckoutID  = Rule{ID: "checkout_id", Expression: "ndc == checkoutId"}
	ruleAmount      = Rule{ID: "amount", Expression: "amount == orderTotal"}
	ruleCurrency    = Rule{ID: "currency", Expression: "currency == orderCurrency"}
)

// CheckoutRules apply to the checkout-creation response.
func CheckoutRules() []Rule {
	return []Rule{ruleResultCode}
}

// VerifyRules apply to the payment-status response of a returned checkout.
func VerifyRules() []Rule {
	return []Rule{ruleResultCode, rulePaymentType, ruleCheckoutID, ruleAmount, ruleCurrency}
}

// CaptureRules apply to the capture response.
func CaptureRules() []Rule {
	return []Rule{ruleResultCode, rulePaymentType, ruleAmount, ruleCurrency}
}

// NewRuleSet compiles rules. Empty expressions and syntax errors are rejected.
func NewRuleSet(name string, rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{name: name}
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, expr: expr})
	}
	return rs, nil
}

// MustRuleSet is like NewRuleSet but panics on error.
func MustRuleSet(name string, rules []Rule) *RuleSet {
	rs, err := NewRuleSet(name, rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Name identifies the rule set in logs.
func (rs *RuleSet) Name() string {
	return rs.name
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Evaluate runs every rule against params and returns those that did not
// hold. An evaluation error, or a rule that does not yield a boolean, aborts.
func (rs *RuleSet) Evaluate(params map[string]interface{}) ([]Violation, error) {
	var violations []Violation
	for _, r := range rs.rules {
		out, err := r.expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("policy %s: rule '%s': %w", rs.name, r.ID, err)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return nil, fmt.Errorf("policy %s: rule '%s' returned %T, want bool", rs.name, r.ID, out)
		}
		if !ok {
			violations = append(violations, Violation{RuleID: r.ID, Expression: r.Expression})
		}
	}
	return violations, nil
}

// RuleIDs flattens violations for structured logging.
func RuleIDs(violations []Violation) []string {
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		ids = append(ids, v.RuleID)
	}
	return ids
}
