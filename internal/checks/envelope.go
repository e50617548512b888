package checks

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Envelope is the raw payload returned by the monitoring service for a
// healthcheck invocation.
type Envelope struct {
	Result EnvelopeResult `json:"result"`
}

type EnvelopeResult struct {
	Summary    Summary          `json:"summary"`
	Details    map[Kind]*Detail `json:"details,omitempty"`
	DurationMs float64          `json:"durationMs"`
}

type Summary struct {
	OK      *bool  `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
}

type Detail struct {
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
	Meta  Meta   `json:"meta,omitempty"`
}

// Meta holds the check specific fields of a detail. Any field may be absent
// or carry an unexpected type.
type Meta map[string]interface{}

// ParseEnvelope decodes a raw healthcheck body. Only a body that is not JSON
// fails; fields of an unexpected type decode to their zero value.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	fields, ok := objectFields(data)
	if !ok {
		*e = Envelope{}
		return nil
	}
	var result EnvelopeResult
	if raw, ok := fields["result"]; ok {
		if err := result.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	e.Result = result
	return nil
}

func (r *EnvelopeResult) UnmarshalJSON(data []byte) error {
	*r = EnvelopeResult{}
	fields, ok := objectFields(data)
	if !ok {
		return nil
	}

	if raw, ok := fields["summary"]; ok {
		if err := r.Summary.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	r.DurationMs = lenientFloat(fields["durationMs"])

	details, ok := objectFields(fields["details"])
	if !ok {
		return nil
	}
	r.Details = make(map[Kind]*Detail, len(details))
	for name, raw := range details {
		if isNull(raw) {
			r.Details[Kind(name)] = nil
			continue
		}
		d := &Detail{}
		if err := d.UnmarshalJSON(raw); err != nil {
			return err
		}
		r.Details[Kind(name)] = d
	}
	return nil
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	*s = Summary{}
	fields, ok := objectFields(data)
	if !ok {
		return nil
	}
	s.OK = lenientBool(fields["ok"])
	s.Message = lenientString(fields["message"])
	return nil
}

// UnmarshalJSON keeps whatever fields have a usable type: a non-boolean ok
// is absent, a non-string error is kept as its JSON text and a meta that is
// not an object is empty.
func (d *Detail) UnmarshalJSON(data []byte) error {
	*d = Detail{}
	fields, ok := objectFields(data)
	if !ok {
		return nil
	}

	d.OK = lenientBool(fields["ok"])
	d.Error = lenientString(fields["error"])

	var meta map[string]interface{}
	if raw, ok := fields["meta"]; ok && json.Unmarshal(raw, &meta) == nil && meta != nil {
		d.Meta = meta
	} else {
		d.Meta = Meta{}
	}
	return nil
}

// objectFields splits a JSON object into its raw members; anything else
// reports false.
func objectFields(data []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &fields) != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func lenientBool(raw json.RawMessage) *bool {
	var b bool
	if isNull(raw) || json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

func lenientString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func lenientFloat(raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var v interface{}
	if json.Unmarshal(raw, &v) != nil {
		return 0
	}
	if f, ok := (Meta{"v": v}).Float("v"); ok {
		return f
	}
	return 0
}

// Payload is the slice of an envelope a single classifier looks at.
type Payload struct {
	Kind       Kind
	Present    bool
	OK         bool
	Error      string
	Meta       Meta
	Summary    Summary
	DurationMs float64
}

// Failed reports whether the backend marked the check as failed with an
// error string attached.
func (p Payload) Failed() bool {
	summaryFailed := p.Summary.OK != nil && !*p.Summary.OK
	return (summaryFailed || !p.OK) && strings.TrimSpace(p.Error) != ""
}

// Payload extracts the detail for kind. A missing envelope or detail yields
// an empty payload that is treated as healthy.
func (e *Envelope) Payload(kind Kind) Payload {
	p := Payload{Kind: kind, OK: true, Meta: Meta{}}
	if e == nil {
		return p
	}

	p.Summary = e.Result.Summary
	p.DurationMs = e.Result.DurationMs

	detail, ok := e.Result.Details[kind]
	if !ok || detail == nil {
		return p
	}

	p.Present = true
	p.Error = detail.Error
	if detail.OK != nil {
		p.OK = *detail.OK
	}
	if detail.Meta != nil {
		p.Meta = detail.Meta
	}

	return p
}

// Kinds returns the check kinds present in the envelope, in canonical order.
func (e *Envelope) Kinds() []Kind {
	if e == nil {
		return nil
	}

	var kinds []Kind
	for _, kind := range AllKinds {
		if d, ok := e.Result.Details[kind]; ok && d != nil {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Float returns a finite numeric field. Numeric strings are accepted.
func (m Meta) Float(key string) (float64, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, false
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int truncates a numeric field toward zero.
func (m Meta) Int(key string) (int, bool) {
	v, ok := m.Float(key)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// Count is Int clamped at zero.
func (m Meta) Count(key string) (int, bool) {
	v, ok := m.Int(key)
	if !ok {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	return v, true
}

// Bool only accepts real booleans; anything else counts as false.
func (m Meta) Bool(key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

func (m Meta) String(key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Object returns a nested object field.
func (m Meta) Object(key string) (Meta, bool) {
	switch v := m[key].(type) {
	case map[string]interface{}:
		return Meta(v), true
	case Meta:
		return v, true
	}
	return nil, false
}
