// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package routing

import (
	"fmt"

	"nexus/internal/domain"
	"nexus/internal/pricing"
	"nexus/internal/registry"
)

// Decision is the three-way terminal outcome of a routing attempt (spec
// §2, §6).
type Decision string

const (
	DecisionRoute  Decision = "route"
	DecisionQueue  Decision = "queue"
	DecisionReject Decision = "reject"
)

// defaultRetryAfterSeconds is the conservative fixed Retry-After value
// used for capacity-exhaustion and queue-deadline rejections (spec §4.8).
const defaultRetryAfterSeconds = 30

// ErrorBody is the Nexus-authored error envelope from spec §6.
type ErrorBody struct {
	Error   ErrorDetail `json:"error"`
	Context ErrorContext `json:"context"`
}

// ErrorDetail is the `error` object of ErrorBody.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"` // "service_unavailable" | "rate_limited"
	Param   *string `json:"param"`
	Code    string  `json:"code"`
}

// ErrorContext is the `context` object of ErrorBody.
type ErrorContext struct {
	AvailableBackends  []string               `json:"available_backends"`
	RequiredTier       *int                   `json:"required_tier,omitempty"`
	PrivacyZoneRequired *string               `json:"privacy_zone_required,omitempty"`
	ETASeconds         *int                   `json:"eta_seconds,omitempty"`
	RejectionReason    map[string]interface{} `json:"rejection_reason,omitempty"`
}

// Outcome is the fully encoded result of one Router.Route call.
type Outcome struct {
	Decision     Decision
	StatusCode   int
	Headers      map[string]string
	Body         *ErrorBody
	Backend      *domain.Backend
	CostEstimate domain.CostEstimate
	RetryAfterSeconds int
	Intent       *domain.RoutingIntent
}

// Encode produces the Route or Reject/Queue Outcome from a fully
// reconciled Intent (spec §6).
func Encode(intent *domain.RoutingIntent, reg *registry.Registry, prices *pricing.Registry, hardLimitAction domain.HardLimitAction) *Outcome {
	if intent.SelectedBackend != "" {
		return encodeRoute(intent, reg, prices)
	}
	return encodeReject(intent, hardLimitAction)
}

func encodeRoute(intent *domain.RoutingIntent, reg *registry.Registry, prices *pricing.Registry) *Outcome {
	backend, ok := reg.Get(intent.SelectedBackend)
	if !ok {
		return encodeFatal(intent, fmt.Errorf("scheduler selected unknown backend %q", intent.SelectedBackend))
	}

	headers := map[string]string{
		"X-Nexus-Backend":       backend.Name,
		"X-Nexus-Backend-Type":  backendTypeHeader(backend.Type),
		"X-Nexus-Privacy-Zone":  string(backend.PrivacyZone),
		"X-Nexus-Route-Reason":  routeReason(intent),
	}
	if intent.FallbackModelUsed != "" {
		headers["X-Nexus-Fallback-Model"] = intent.FallbackModelUsed
	}

	var cost domain.CostEstimate
	if backend.Type.IsCloud() {
		model, _ := backend.ModelByID(intent.ResolvedModel)
		out := intent.Requirements.EstimatedOutputTokens()
		cost = domain.CostEstimate{
			InputTokens:  intent.Requirements.EstimatedTokens,
			OutputTokens: out,
			CostCents:    prices.EstimateCostCents(model.Provider, intent.ResolvedModel, intent.Requirements.EstimatedTokens, out),
		}
		headers["X-Nexus-Cost-Estimated"] = fmt.Sprintf("%.4f", float64(cost.CostCents)/100.0)
	}

	return &Outcome{
		Decision:     DecisionRoute,
		StatusCode:   200,
		Headers:      headers,
		Backend:      backend,
		CostEstimate: cost,
		Intent:       intent,
	}
}

func backendTypeHeader(t domain.BackendType) string {
	if t.IsCloud() {
		return "cloud"
	}
	return "local"
}

func routeReason(intent *domain.RoutingIntent) string {
	switch {
	case intent.FallbackModelUsed != "":
		return "fallback-chain"
	case intent.Constraints.OverflowApplied:
		return "capacity-overflow"
	case intent.Constraints.PrivacyConstraint != nil && *intent.Constraints.PrivacyConstraint == domain.PrivacyZoneRestricted:
		return "privacy-requirement"
	default:
		return "capability-match"
	}
}

func encodeReject(intent *domain.RoutingIntent, hardLimitAction domain.HardLimitAction) *Outcome {
	isBudgetReject := intent.Constraints.BudgetStatus == domain.BudgetHardLimit && hardLimitAction == domain.HardLimitReject
	isQueueable := intent.Constraints.BudgetStatus == domain.BudgetHardLimit && hardLimitAction == domain.HardLimitQueue

	decision := DecisionReject
	statusCode := 503
	errType := "service_unavailable"
	if isBudgetReject {
		statusCode = 429
		errType = "rate_limited"
	}
	if isQueueable {
		decision = DecisionQueue
	}

	context := ErrorContext{AvailableBackends: append([]string{}, intent.Excluded...)}
	if intent.Constraints.MinTier != nil {
		tier := intent.Constraints.MinTier.Scalar
		context.RequiredTier = &tier
	}
	if intent.Constraints.PrivacyConstraint != nil {
		zone := string(*intent.Constraints.PrivacyConstraint)
		context.PrivacyZoneRequired = &zone
	}
	if len(intent.RejectionReasons) > 0 {
		context.RejectionReason = serializeReason(intent.RejectionReasons[len(intent.RejectionReasons)-1].Reason)
	}
	if decision == DecisionQueue {
		eta := defaultRetryAfterSeconds
		context.ETASeconds = &eta
	}

	body := &ErrorBody{
		Error: ErrorDetail{
			Message: rejectMessage(intent),
			Type:    errType,
			Param:   nil,
			Code:    rejectCode(intent),
		},
		Context: context,
	}

	return &Outcome{
		Decision:          decision,
		StatusCode:        statusCode,
		Headers:           map[string]string{"Retry-After": fmt.Sprintf("%d", defaultRetryAfterSeconds)},
		Body:              body,
		RetryAfterSeconds: defaultRetryAfterSeconds,
		Intent:            intent,
	}
}

func rejectCode(intent *domain.RoutingIntent) string {
	if len(intent.RejectionReasons) == 0 {
		return "no_candidates"
	}
	return intent.RejectionReasons[len(intent.RejectionReasons)-1].Reason.Code()
}

func rejectMessage(intent *domain.RoutingIntent) string {
	if len(intent.RejectionReasons) == 0 {
		return fmt.Sprintf("no backend serves model %q", intent.ResolvedModel)
	}
	return intent.RejectionReasons[len(intent.RejectionReasons)-1].Reason.Error()
}

// serializeReason renders a RejectionReason's distinguishing fields as a
// plain map so the tagged union round-trips through JSON without a custom
// MarshalJSON per variant.
func serializeReason(reason domain.RejectionReason) map[string]interface{} {
	out := map[string]interface{}{"code": reason.Code()}
	switch r := reason.(type) {
	case domain.PrivacyZoneMismatch:
		out["required"] = string(r.Required)
		out["actual"] = string(r.Actual)
	case domain.TierInsufficient:
		out["dimension"] = r.Dimension
		out["required"] = r.Required
		out["actual"] = r.Actual
	case domain.ContextWindowTooSmall:
		out["required"] = r.Required
		out["actual"] = r.Actual
	case domain.MissingCapability:
		out["capability"] = r.Capability
	case domain.BudgetExhausted:
		out["action"] = r.Action
	case domain.QualityDegraded:
		out["error_rate"] = r.ErrorRate
	case domain.ModelNotServed:
		out["model"] = r.Model
	case domain.UnhealthyBackend:
		out["status"] = string(r.Status)
	}
	return out
}

// encodeFatal handles the "internal invariant violation" taxonomy item
// (spec §7 item 5): logged by the caller, never panics, always 503.
func encodeFatal(intent *domain.RoutingIntent, err error) *Outcome {
	return &Outcome{
		Decision:   DecisionReject,
		StatusCode: 503,
		Headers:    map[string]string{"Retry-After": fmt.Sprintf("%d", defaultRetryAfterSeconds)},
		Body: &ErrorBody{
			Error: ErrorDetail{
				Message: err.Error(),
				Type:    "service_unavailable",
				Code:    "internal_error",
			},
			Context: ErrorContext{AvailableBackends: append([]string{}, intent.Excluded...)},
		},
		RetryAfterSeconds: defaultRetryAfterSeconds,
		Intent:            intent,
	}
}
