package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMood(t *testing.T) {
	cases := []struct {
		msg  string
		want Mood
	}{
		{"I feel so down today", MoodSad},
		{"I'm excited but also sad", MoodSad},
		{"aaj main bahut khush hoon", MoodHappy},
		{"I'm HAPPY!", MoodHappy},
		{"what's up?", MoodCurious},
		{"are you sad?", MoodSad},
		{"just got back from work", MoodNeutral},
		{"", MoodNeutral},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyMood(tc.msg), tc.msg)
	}
}

func TestClassifyEngagement(t *testing.T) {
	assert.Equal(t, Disengaged, ClassifyEngagement("", nil))
	assert.Equal(t, Disengaged, ClassifyEngagement("   ", nil))
	assert.Equal(t, Disengaged, ClassifyEngagement("k", nil))
	assert.Equal(t, Disengaged, ClassifyEngagement("ok cool", nil))
	assert.Equal(t, Engaged, ClassifyEngagement("tell me about your weekend plans", nil))

	quiet := []string{"a much longer message from earlier on", "ok", "yeah sure"}
	assert.Equal(t, Disengaged, ClassifyEngagement("tell me about your weekend plans", quiet))

	chatty := []string{"ok", "I went hiking with my sister this morning"}
	assert.Equal(t, Engaged, ClassifyEngagement("tell me about your weekend plans", chatty))

	assert.Equal(t, Engaged, ClassifyEngagement("tell me about your weekend plans", []string{"ok"}))
}

func TestBuild_ReEngagementLine(t *testing.T) {
	out := Build("k", nil, Profile{})
	lines := strings.Split(out, "\n")
	assert.Equal(t, ReEngageInstruction, lines[len(lines)-1])
	assert.Contains(t, out, "User may be losing interest or has gone quiet.")

	out = Build("I spent the whole afternoon reading a new fantasy novel", nil, Profile{})
	assert.NotContains(t, out, ReEngageInstruction)
	assert.Contains(t, out, "User is actively engaged.")
}

func TestBuild_SectionOrder(t *testing.T) {
	out := Build("why is the sky blue?", []string{"hi there friend", "how are you doing today"},
		Profile{Name: "Asha", Age: 24, Interests: []string{"music", "chess"}})

	order := []string{
		"You are Nyra",
		"## User Context:",
		"Name: Asha",
		"Age: 24",
		"Interests: music, chess",
		"## Conversation History:",
		"hi there friend\nhow are you doing today",
		"## Current User Message:",
		`"why is the sky blue?"`,
		"## Detected Mood:\nCurious",
		"## Engagement Status:",
		"## Instructions for Nyra:",
	}
	last := -1
	for _, s := range order {
		idx := strings.Index(out, s)
		if assert.GreaterOrEqual(t, idx, 0, s) {
			assert.Greater(t, idx, last, s)
			last = idx
		}
	}
}

func TestBuild_OmitsAbsentFields(t *testing.T) {
	out := Build("hello there, how is your day going", nil, Profile{})
	assert.NotContains(t, out, "## User Context:")
	assert.NotContains(t, out, "Name:")
	assert.NotContains(t, out, "Age:")
	assert.NotContains(t, out, "Interests:")
	for _, bad := range []string{"undefined", "null", "<nil>", "[]"} {
		assert.NotContains(t, out, bad)
	}
	assert.Contains(t, out, "No history yet.")

	out = Build("hello there, how is your day going", nil, Profile{Age: 30})
	assert.Contains(t, out, "Age: 30")
	assert.NotContains(t, out, "Name:")
	assert.NotContains(t, out, "Interests:")
}

func TestBuild_EmptyMessage(t *testing.T) {
	out := Build("", nil, Profile{})
	assert.Contains(t, out, "## Detected Mood:\nNeutral")
	assert.Contains(t, out, `""`)
	assert.True(t, strings.HasSuffix(out, ReEngageInstruction))
}

func TestBuild_KeepsMessageVerbatim(t *testing.T) {
	msg := "first line\nsecond \"quoted\" line with café"
	out := Build(msg, nil, Profile{})
	assert.True(t, strings.Contains(out, msg))
	assert.Contains(t, out, "## Current User Message:\n\""+msg+"\"\n")
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, Persona, SystemPrompt(""))
	sp := SystemPrompt(Build("hey what's new with you", nil, Profile{}))
	assert.True(t, strings.HasPrefix(sp, Persona))
	assert.Contains(t, sp, "## Detected Mood:")
}
