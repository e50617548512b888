package checks

import "fmt"

type Kind string

const (
	KindUptime       Kind = "uptime"
	KindSSL          Kind = "ssl"
	KindDomain       Kind = "domain"
	KindLighthouse   Kind = "lighthouse"
	KindBrokenLinks  Kind = "broken_links"
	KindMixedContent Kind = "mixed_content"
)

// AllKinds lists every check kind in display order.
var AllKinds = []Kind{
	KindUptime,
	KindSSL,
	KindDomain,
	KindLighthouse,
	KindBrokenLinks,
	KindMixedContent,
}

func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown check kind %q", s)
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) severity() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Severity maps a status onto 0 (success), 1 (warning) or 2 (error).
func (s Status) Severity() float64 {
	return float64(s.severity())
}

// Worst returns the most severe of the given statuses, success when empty.
func Worst(statuses ...Status) Status {
	worst := StatusSuccess
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Result is the normalized outcome of a single check.
type Result struct {
	Kind    Kind      `json:"kind"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Data    *Envelope `json:"data,omitempty"`
}

// Verdict is what a rule decides for a payload without a backend error.
type Verdict struct {
	Status  Status
	Message string
}

// Rule configures the generic classifier for one check kind.
type Rule struct {
	Kind Kind
	// Name is used in the generic messages, e.g. "SSL" in
	// "Failed to get the SSL report."
	Name     string
	Evaluate func(p Payload) Verdict
}

func (r Rule) failureMessage() string {
	return fmt.Sprintf("Failed to get the %s report.", r.Name)
}

func (r Rule) completedMessage() string {
	return fmt.Sprintf("%s check completed.", capitalize(r.Name))
}

// Classifier maps envelopes to normalized results using one rule per kind.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules map[Kind]Rule
}

// NewClassifier builds the rule table for the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	c := &Classifier{rules: make(map[Kind]Rule)}
	for _, r := range []Rule{
		uptimeRule(),
		sslRule(t.SSL),
		domainRule(t.Domain),
		lighthouseRule(t.Lighthouse),
		brokenLinksRule(),
		mixedContentRule(),
	} {
		c.rules[r.Kind] = r
	}
	return c
}

var defaultClassifier = NewClassifier(DefaultThresholds())

// Classify runs the default classifier.
func Classify(kind Kind, env *Envelope) Result {
	return defaultClassifier.Classify(kind, env)
}

// ClassifyAll runs the default classifier over every kind in env.
func ClassifyAll(env *Envelope) map[Kind]Result {
	return defaultClassifier.ClassifyAll(env)
}

func (c *Classifier) Classify(kind Kind, env *Envelope) Result {
	rule, ok := c.rules[kind]
	if !ok {
		rule = Rule{Kind: kind, Name: string(kind)}
	}

	result := Result{Kind: kind, Data: env}
	p := env.Payload(kind)

	if p.Failed() {
		result.Status = StatusError
		result.Message = rule.failureMessage()
		result.Error = Sanitize(p.Error)
		return result
	}

	var v Verdict
	if rule.Evaluate != nil {
		v = rule.Evaluate(p)
	}
	if v.Status == "" {
		v.Status = StatusSuccess
	}
	if v.Message == "" {
		v.Message = rule.completedMessage()
	}

	result.Status = v.Status
	result.Message = v.Message
	return result
}

// Failure is the result for a kind whose report could not be fetched at
// all.
func (c *Classifier) Failure(kind Kind, err error) Result {
	rule, ok := c.rules[kind]
	if !ok {
		rule = Rule{Kind: kind, Name: string(kind)}
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Kind:    kind,
		Status:  StatusError,
		Message: rule.failureMessage(),
		Error:   Sanitize(msg),
	}
}

// ClassifyAll classifies only the kinds present in the envelope.
func (c *Classifier) ClassifyAll(env *Envelope) map[Kind]Result {
	results := make(map[Kind]Result)
	for _, kind := range env.Kinds() {
		results[kind] = c.Classify(kind, env)
	}
	return results
}

// Overall is the worst status across a set of results.
func Overall(results map[Kind]Result) Status {
	statuses := make([]Status, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	return Worst(statuses...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
