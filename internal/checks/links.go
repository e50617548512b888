package checks

import (
	"fmt"
	"strings"
)

func brokenLinksRule() Rule {
	return Rule{
		Kind: KindBrokenLinks,
		Name: "broken links",
		Evaluate: func(p Payload) Verdict {
			return evaluateBrokenLinks(p.Meta)
		},
	}
}

func evaluateBrokenLinks(meta Meta) Verdict {
	broken, hasBroken := meta.Count("broken")
	redirected, hasRedirected := meta.Count("redirected")
	if !hasBroken && !hasRedirected {
		return Verdict{}
	}

	if broken == 0 && redirected == 0 {
		return Verdict{Status: StatusSuccess, Message: "No broken links!"}
	}

	var parts []string
	if broken > 0 {
		parts = append(parts, plural(broken, "broken link", "broken links"))
	}
	if redirected > 0 {
		parts = append(parts, plural(redirected, "redirected link", "redirected links"))
	}

	return Verdict{
		Status:  StatusWarning,
		Message: fmt.Sprintf("%s found.", strings.Join(parts, " and ")),
	}
}

func mixedContentRule() Rule {
	return Rule{
		Kind: KindMixedContent,
		Name: "mixed content",
		Evaluate: func(p Payload) Verdict {
			return evaluateMixedContent(p.Meta)
		},
	}
}

func evaluateMixedContent(meta Meta) Verdict {
	count, ok := meta.Count("mixedCount")
	if !ok {
		count, ok = meta.Count("count")
	}
	if !ok {
		return Verdict{}
	}

	switch count {
	case 0:
		return Verdict{Status: StatusSuccess, Message: "No mixed content found."}
	case 1:
		return Verdict{Status: StatusWarning, Message: "1 mixed content item detected."}
	default:
		return Verdict{
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d mixed content items detected!", count),
		}
	}
}
