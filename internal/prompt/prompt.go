package prompt

import (
	"strconv"
	"strings"
)

type Mood string

const (
	MoodSad     Mood = "Sad"
	MoodHappy   Mood = "Happy"
	MoodCurious Mood = "Curious"
	MoodNeutral Mood = "Neutral"
)

type Engagement string

const (
	Engaged    Engagement = "Engaged"
	Disengaged Engagement = "Disengaged"
)

// Profile fields left at their zero value are treated as absent.
type Profile struct {
	Name      string   `json:"name,omitempty"`
	Age       int      `json:"age,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

var (
	sadTerms   = []string{"sad", "udaas", "down"}
	happyTerms = []string{"happy", "khush", "excited"}
)

const (
	shortMessageTokens = 2
	shortReplyTokens   = 3

	ReEngageInstruction = "- The user seems quiet or disengaged. Add an interesting open-ended question to re-engage them."
)

// ClassifyMood is a substring scan over the lowercased message.
// Sad terms win over happy ones, and both win over a question mark.
func ClassifyMood(message string) Mood {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, sadTerms):
		return MoodSad
	case containsAny(lower, happyTerms):
		return MoodHappy
	case strings.Contains(lower, "?"):
		return MoodCurious
	}
	return MoodNeutral
}

// ClassifyEngagement flags short replies. The history rule needs at least two
// prior entries.
func ClassifyEngagement(message string, history []string) Engagement {
	if strings.TrimSpace(message) == "" {
		return Disengaged
	}
	if len(strings.Fields(message)) <= shortMessageTokens {
		return Disengaged
	}
	if len(history) >= 2 {
		quiet := true
		for _, h := range history[len(history)-2:] {
			if len(strings.Fields(h)) > shortReplyTokens {
				quiet = false
				break
			}
		}
		if quiet {
			return Disengaged
		}
	}
	return Engaged
}

// Build assembles the enriched prompt. It never fails; missing inputs are
// omitted or replaced with explicit markers.
func Build(message string, history []string, profile Profile) string {
	mood := ClassifyMood(message)
	engagement := ClassifyEngagement(message, history)

	var b strings.Builder
	b.WriteString("You are Nyra, a warm, intelligent, and engaging AI friend.\n")
	b.WriteString("Your role is to make conversations natural, fun, and emotionally aware.\n")

	if ctx := profileLines(profile); len(ctx) > 0 {
		b.WriteString("\n## User Context:\n")
		for _, l := range ctx {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\n## Conversation History:\n")
	if len(history) == 0 {
		b.WriteString("No history yet.\n")
	} else {
		b.WriteString(strings.Join(history, "\n"))
		b.WriteByte('\n')
	}

	b.WriteString("\n## Current User Message:\n")
	b.WriteByte('"')
	b.WriteString(message)
	b.WriteString("\"\n")

	b.WriteString("\n## Detected Mood:\n")
	b.WriteString(string(mood))
	b.WriteByte('\n')

	b.WriteString("\n## Engagement Status:\n")
	if engagement == Disengaged {
		b.WriteString("User may be losing interest or has gone quiet.\n")
	} else {
		b.WriteString("User is actively engaged.\n")
	}

	b.WriteString("\n## Instructions for Nyra:\n")
	b.WriteString("- Respond in a casual, human-like tone.\n")
	b.WriteString("- Use empathy if mood is sad, excitement if happy.\n")
	b.WriteString("- Avoid generic, repetitive replies.\n")
	b.WriteString("- Encourage user to keep engaging in the conversation.\n")
	b.WriteString("- If possible, relate your response to user's interests or the current topic.")
	if engagement == Disengaged {
		b.WriteByte('\n')
		b.WriteString(ReEngageInstruction)
	}

	return b.String()
}

func profileLines(p Profile) []string {
	var lines []string
	if name := strings.TrimSpace(p.Name); name != "" {
		lines = append(lines, "Name: "+name)
	}
	if p.Age > 0 {
		lines = append(lines, "Age: "+strconv.Itoa(p.Age))
	}
	var interests []string
	for _, i := range p.Interests {
		if i = strings.TrimSpace(i); i != "" {
			interests = append(interests, i)
		}
	}
	if len(interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(interests, ", "))
	}
	return lines
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
