package triage

import "fmt"

// Request is what the classifier receives for one ticket
type Request struct {
	Title       string
	Description string
	System      string
	User        string
}

const systemPrompt = `You are an enterprise support ticket triage engine.

Analyze the support ticket and return strict, valid JSON only, with exactly this structure:

{
  "category": "BILLING | TECHNICAL | ACCOUNT | GENERAL",
  "priority": "LOW | MEDIUM | HIGH | URGENT",
  "sentiment": "POSITIVE | NEUTRAL | NEGATIVE",
  "risk": "LOW | MEDIUM | HIGH",
  "confidence": number between 0 and 1,
  "summary": "one short sentence"
}

Category:
- Payment, refund, invoice: BILLING
- Login, password, account access: ACCOUNT
- Bug, crash, error, system failure: TECHNICAL
- General information or feature question: GENERAL

Risk:
- Security breach, fraud, data loss: HIGH
- Angry customer with a billing issue: HIGH
- Ordinary bug without urgency: MEDIUM
- Simple question: LOW

Priority:
- Words like "immediately", "ASAP", "critical": URGENT
- Payment failure or system down: HIGH
- Ordinary bug: MEDIUM
- Question: LOW

Confidence:
- Clear issue: 0.8 to 1.0
- Slight ambiguity: 0.6 to 0.8
- Unclear issue: below 0.6

Return only the JSON object. Do not explain.`

// NewRequest builds the classifier request for a ticket
func NewRequest(title, description string) Request {
	return Request{
		Title:       title,
		Description: description,
		System:      systemPrompt,
		User:        fmt.Sprintf("Title: %s\nDescription: %s", title, description),
	}
}
