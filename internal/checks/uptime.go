package checks

func uptimeRule() Rule {
	return Rule{
		Kind:     KindUptime,
		Name:     "uptime",
		Evaluate: evaluateUptime,
	}
}

func evaluateUptime(p Payload) Verdict {
	message := statusCodeMessage(p.Meta)

	// Uptime has no warning band: a detail marked failed is down even when
	// the backend attached no error string.
	if p.Present && !p.OK {
		if message == "" {
			message = "Site reported as unreachable."
		}
		return Verdict{Status: StatusError, Message: message}
	}

	return Verdict{Status: StatusSuccess, Message: message}
}

func statusCodeMessage(meta Meta) string {
	code, ok := meta.Int("statusCode")
	if !ok {
		code, ok = meta.Int("status")
	}
	if !ok {
		return ""
	}

	switch {
	case code >= 200 && code < 300:
		return "All good."
	case code >= 300 && code < 400:
		return "Redirection detected, but reachable."
	case code >= 400 && code < 500:
		return "Client error detected."
	case code >= 500 && code < 600:
		return "Server error detected."
	default:
		return ""
	}
}
