// Package responder produces canned replies for support tickets.
//
// Replies come from an ordered table of keyword rules. The first rule with a
// keyword contained in the ticket text wins; tickets matching no rule get no
// reply and are left for a human agent.
package responder

import "strings"

// Topic identifies which rule produced a reply.
type Topic string

const (
	TopicAPIKeys   Topic = "api_keys"
	TopicUsage     Topic = "usage"
	TopicBilling   Topic = "billing"
	TopicRateLimit Topic = "rate_limit"
)

// Rule maps a set of keywords to a canned reply.
type Rule struct {
	Topic    Topic
	Keywords []string
	Reply    string
}

// matches reports whether any keyword occurs in text. Keywords and text are lower case.
func (r Rule) matches(text string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Rules is evaluated in order.
var Rules = []Rule{
	{
		Topic:    TopicAPIKeys,
		Keywords: []string{"api key", "reset key"},
		Reply: "To rotate your API key:\n" +
			"1. Go to the 'API Keys' tab\n" +
			"2. Click 'Rotate Key' next to your current key\n" +
			"3. Save the new key immediately (it won't be shown again)\n\n" +
			"Your old key will be revoked automatically.",
	},
	{
		Topic:    TopicUsage,
		Keywords: []string{"usage", "how many", "calls"},
		Reply: "You can view your real-time usage statistics on the dashboard:\n" +
			"- Today's requests\n" +
			"- This month's total\n" +
			"- All-time usage\n\n" +
			"Visit the 'Usage' tab for detailed analytics.",
	},
	{
		Topic:    TopicBilling,
		Keywords: []string{"bill", "charge", "invoice"},
		Reply: "Your billing history is available in the 'Billing' tab. You'll find:\n" +
			"- All invoices (last 12 months)\n" +
			"- Payment status\n" +
			"- Usage breakdown\n\n" +
			"For refunds or billing disputes, please reply to this ticket and we'll prioritize it.",
	},
	{
		Topic:    TopicRateLimit,
		Keywords: []string{"429", "rate limit", "too many requests"},
		Reply: "You've hit your rate limit. Check the 'Usage' tab for:\n" +
			"- Current limit remaining\n" +
			"- Reset time (usually midnight UTC)\n\n" +
			"To increase your limit, upgrade your plan or contact us for custom limits.",
	},
}

// Reply returns the canned reply for a ticket and the topic that matched.
// ok is false when no rule matches.
func Reply(subject, message string) (reply string, topic Topic, ok bool) {
	text := strings.ToLower(subject + " " + message)
	for _, rule := range Rules {
		if rule.matches(text) {
			return rule.Reply, rule.Topic, true
		}
	}
	return "", "", false
}
