// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package analyzer is the Request Analyzer: the first pipeline stage. It
// resolves model aliases and extracts structural capability signals from
// an inbound OpenAI-compatible chat request, producing domain.Requirements
// and the resolved model name; internal/routing builds the candidate list.
// Grounded on the teacher lineage's
// llm_request_adapter.go (request-shape extraction) and llm_router.go's
// provider-resolution flow.
package analyzer

import "encoding/json"

// ContentPart is one element of a multi-part message content array, e.g.
// {"type":"text","text":"..."} or {"type":"image_url","image_url":{...}}.
type ContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL json.RawMessage `json:"image_url,omitempty"`
}

// ChatMessage is one entry in the request's messages array. Content may
// arrive as a bare string or as a []ContentPart; UnmarshalJSON inspects
// the raw content JSON to tell the two apart.
type ChatMessage struct {
	Role       string
	Text       string
	Parts      []ContentPart
	IsMultipart bool
}

// UnmarshalJSON accepts either `"content": "hi"` or
// `"content": [{"type":"text","text":"hi"}]`.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role

	if len(raw.Content) == 0 {
		return nil
	}
	if raw.Content[0] == '"' {
		return json.Unmarshal(raw.Content, &m.Text)
	}
	m.IsMultipart = true
	return json.Unmarshal(raw.Content, &m.Parts)
}

// ResponseFormat mirrors OpenAI's response_format field.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the inbound OpenAI-compatible request shape the Request
// Analyzer consumes. Passthrough fields (temperature, max_tokens, ...) are
// deliberately not modeled here — the routing core only needs the fields
// that affect routing decisions; everything else is forwarded verbatim by
// the (external, out-of-scope) HTTP/egress layer.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	Tools          json.RawMessage `json:"tools,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// HasHistory reports whether the conversation carries more than a single
// user turn — used by the Privacy Reconciler's fresh-only overflow check.
func (r ChatRequest) HasHistory() bool {
	return len(r.Messages) > 1
}
