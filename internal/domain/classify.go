package domain

import "strings"

var categoryKeywords = map[TicketCategory][]string{
	CategoryNetwork:  {"vpn", "wifi", "network", "internet", "connection", "dns", "firewall", "proxy", "bandwidth"},
	CategoryHardware: {"laptop", "monitor", "keyboard", "mouse", "printer", "dock", "headset", "webcam", "charger"},
	CategorySoftware: {"install", "update", "crash", "error", "license", "application", "software", "program"},
	CategoryAccess:   {"password", "login", "access", "permission", "unlock", "mfa", "authentication", "sso", "account"},
	CategoryEmail:    {"email", "outlook", "calendar", "teams", "meeting", "mailbox", "distribution list"},
}

var priorityKeywords = []struct {
	priority TicketPriority
	keywords []string
}{
	{TicketPriorityCritical, []string{"outage", "down", "production", "all users affected", "security breach", "data loss"}},
	{TicketPriorityHigh, []string{"urgent", "asap", "blocking", "cannot work", "executive", "customer facing", "deadline"}},
	{TicketPriorityMedium, []string{"slow", "intermittent", "sometimes", "occasional", "times out", "timeout"}},
	{TicketPriorityLow, []string{"question", "how to", "when possible", "enhancement", "nice to have", "feature request"}},
}

// DetectCategory classifies ticket text by keyword matching. Returns the
// category with the most hits alongside the hit count; zero hits yields
// CategoryOther.
func DetectCategory(text string) (TicketCategory, int) {
	text = strings.ToLower(text)
	best := CategoryOther
	bestScore := 0
	for category, keywords := range categoryKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best, bestScore
}

// DetectPriority classifies urgency by keyword matching, highest tier first.
// Defaults to medium.
func DetectPriority(text string) TicketPriority {
	text = strings.ToLower(text)
	for _, tier := range priorityKeywords {
		for _, kw := range tier.keywords {
			if strings.Contains(text, kw) {
				return tier.priority
			}
		}
	}
	return TicketPriorityMedium
}

// DefaultResolutionTool maps a category to its first-line remediation tool.
func DefaultResolutionTool(category TicketCategory) string {
	switch category {
	case CategoryNetwork:
		return "push_vpn_config"
	case CategoryAccess:
		return "unlock_account"
	case CategorySoftware:
		return "repair_application"
	case CategoryHardware, CategoryEmail:
		return "run_diagnostic"
	default:
		return "run_diagnostic"
	}
}
