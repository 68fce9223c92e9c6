// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package domain holds the value types the routing core operates on:
// backends, models, requirements, traffic policy, the routing intent, and
// the rejection-reason sum type. Nothing in this package talks to the
// network, a clock, or a registry — it is pure data plus small pure
// helpers, so the reconciler pipeline can stay deterministic and testable.
package domain

import "sync/atomic"

// BackendType is the finite vendor-class tag for a registered backend.
type BackendType string

const (
	BackendTypeLocalSingleHost     BackendType = "local-single-host"
	BackendTypeLocalServingFramework BackendType = "local-serving-framework"
	BackendTypeDesktopRunner       BackendType = "desktop-runner"
	BackendTypeDistributedFabric   BackendType = "distributed-fabric"
	BackendTypeCloudVendor         BackendType = "cloud-vendor"
)

// IsCloud reports whether this backend type is priced (incurs cost).
func (t BackendType) IsCloud() bool {
	return t == BackendTypeCloudVendor
}

// DefaultPrivacyZone returns the zone a backend of this type defaults to
// when no explicit zone is configured: restricted for anything local,
// open for cloud vendors.
func (t BackendType) DefaultPrivacyZone() PrivacyZone {
	if t == BackendTypeCloudVendor {
		return PrivacyZoneOpen
	}
	return PrivacyZoneRestricted
}

// PrivacyZone is a backend-configured label. Restricted traffic must not
// reach open backends unless a policy explicitly permits fresh-only
// overflow. This is server-authoritative: no client header may set it.
type PrivacyZone string

const (
	PrivacyZoneRestricted PrivacyZone = "restricted"
	PrivacyZoneOpen       PrivacyZone = "open"
)

// HealthStatus is the current operational status of a backend, refreshed
// by an external health-probing collaborator.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// CapabilityTier is a declared quality class: either a single scalar
// (1..5, higher is better) or a per-dimension vector. A zero Scalar with
// no dimensions set means "no tier configured" (treated as the lowest
// tier by comparisons).
type CapabilityTier struct {
	Scalar    int
	Reasoning int
	Coding    int
	Vision    int
	Tools     int
}

// Meets reports whether this tier satisfies a required minimum tier.
// Scalar comparison is used when the requirement carries only a scalar;
// otherwise every declared per-dimension minimum must be met.
func (t CapabilityTier) Meets(min CapabilityTier) bool {
	if min.Reasoning == 0 && min.Coding == 0 && min.Vision == 0 && min.Tools == 0 {
		return t.Scalar >= min.Scalar
	}
	if min.Reasoning > 0 && t.Reasoning < min.Reasoning {
		return false
	}
	if min.Coding > 0 && t.Coding < min.Coding {
		return false
	}
	if min.Vision > 0 && t.Vision < min.Vision {
		return false
	}
	if min.Tools > 0 && t.Tools < min.Tools {
		return false
	}
	return true
}

// Model is a served model identity plus the structural facts the
// reconciler pipeline filters on.
type Model struct {
	ID               string
	ContextLength    int
	SupportsVision   bool
	SupportsTools    bool
	SupportsJSONMode bool
	Provider         string // pricing tag, e.g. "openai", "anthropic", "local"
}

// Backend is a registered inference server: its identity, configuration,
// and live mutable state (health, in-flight count). Backend is owned
// exclusively by the Registry; every other component holds a read-only
// *Backend snapshot pointer. The PendingRequests counter is the one field
// mutated outside the Registry (by the Scheduler, atomically).
type Backend struct {
	ID             string
	Name           string
	Endpoint       string
	Type           BackendType
	Priority       int
	PrivacyZone    PrivacyZone
	CapabilityTier CapabilityTier
	Models         []Model
	// CapacityEstimate is the configured concurrent-request capacity used
	// by the Scheduler's load-penalty term (pending / capacity_estimate).
	// Zero means "unconfigured"; NewBackend seeds a conservative default.
	CapacityEstimate int

	health          atomic.Value // HealthStatus
	pendingRequests atomic.Int64
}

// defaultCapacityEstimate is the fallback concurrent-request capacity
// assumed for a backend with no explicit configuration.
const defaultCapacityEstimate = 10

// NewBackend builds a Backend with its health initialized to healthy and
// zero in-flight requests.
func NewBackend(id, name, endpoint string, typ BackendType) *Backend {
	b := &Backend{
		ID:               id,
		Name:             name,
		Endpoint:         endpoint,
		Type:             typ,
		CapacityEstimate: defaultCapacityEstimate,
	}
	b.health.Store(HealthHealthy)
	return b
}

// Health returns the current health status.
func (b *Backend) Health() HealthStatus {
	v, _ := b.health.Load().(HealthStatus)
	if v == "" {
		return HealthUnhealthy
	}
	return v
}

// SetHealth atomically updates the health status.
func (b *Backend) SetHealth(s HealthStatus) {
	b.health.Store(s)
}

// PendingRequests returns the current in-flight count for this backend.
func (b *Backend) PendingRequests() int64 {
	return b.pendingRequests.Load()
}

// IncrementPending atomically increments the in-flight counter, returning
// the new value. Called by the Scheduler on commit.
func (b *Backend) IncrementPending() int64 {
	return b.pendingRequests.Add(1)
}

// DecrementPending atomically decrements the in-flight counter. Called
// once the request completes, regardless of outcome.
func (b *Backend) DecrementPending() int64 {
	return b.pendingRequests.Add(-1)
}

// ModelByID returns the served Model with the given id, if any.
func (b *Backend) ModelByID(id string) (Model, bool) {
	for _, m := range b.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
