package understand

import (
	"fmt"
	"strings"
)

// buildPrompt renders the extraction prompt: the message, the retrieved
// context window, and the rules the model must follow.
func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze this chat message and extract scheduling information in JSON format.\n\n")
	fmt.Fprintf(&b, "Message: %q\n", req.Text)
	fmt.Fprintf(&b, "Today: %s\n", req.Now.Format("Monday, 2006-01-02 15:04"))
	fmt.Fprintf(&b, "User timezone: %s\n", req.Timezone)

	if len(req.Window) > 0 {
		b.WriteString("\nRelevant prior conversation, most similar first:\n")
		for _, snip := range req.Window {
			fmt.Fprintf(&b, "- [%s] %s\n", snip.Timestamp.Format("2006-01-02 15:04"), snip.Text)
			if snip.Descriptor != nil {
				fmt.Fprintf(&b, "  (meeting %q on %s, status %s)\n",
					snip.Descriptor.Title, snip.Descriptor.Start.Format("2006-01-02 15:04"), snip.Descriptor.Status)
			}
		}
	}

	b.WriteString(`
Respond with exactly this JSON shape:
{
    "intent": "schedule|reschedule|cancel|query|unknown",
    "date": "YYYY-MM-DD or a relative expression like 'tomorrow' or 'next tuesday', or null",
    "time": "HH:MM (24h) or null",
    "duration_minutes": number or null,
    "meeting_type": "virtual|in-person or null",
    "location": "location string or null",
    "participants": ["email or name", ...] or null,
    "title": "meeting title or null",
    "confidence": 0.0-1.0
}

Rules:
- Extract only what the message states or the prior conversation clearly implies.
- Prefer an absolute YYYY-MM-DD date when the message pins one down; otherwise keep the relative expression verbatim.
- Do not invent a time or duration that was never mentioned.
- Set confidence based on how clear the request is.
`)
	return b.String()
}
