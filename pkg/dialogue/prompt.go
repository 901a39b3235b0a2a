package dialogue

import (
	"fmt"
	"strings"
)

// TrailingWindow returns at most n runes from the end of s. Context passed
// between turns keeps the most recent text, not the oldest.
func TrailingWindow(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// PromptInput carries everything needed to render one turn's prompt.
type PromptInput struct {
	Philosopher PhilosopherProfile
	Author      AuthorProfile
	Topic       string

	// PeerContext is the trailing window of the opposing speaker's last
	// message. Empty for the opening turn.
	PeerContext string
}

// BuildPrompt renders the generation prompt for a turn. The opening turn
// introduces the topic; responding turns react to the peer's latest
// statement.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a philosopher who holds the worldview of %s (%s).\n", in.Philosopher.Name, in.Philosopher.Era)
	fmt.Fprintf(&sb, "Core concepts you draw on: %s.\n", strings.Join(in.Philosopher.KeyConcepts, ", "))
	fmt.Fprintf(&sb, "Your convictions: %s.\n", in.Philosopher.Beliefs)
	fmt.Fprintf(&sb, "Your argumentative manner: %s.\n\n", in.Philosopher.Style)

	fmt.Fprintf(&sb, "You express yourself in the literary voice of %s: %s.\n", in.Author.Name, in.Author.Voice)
	fmt.Fprintf(&sb, "Stylistic traits to embody: %s.\n\n", strings.Join(in.Author.Characteristics, ", "))

	sb.WriteString("Rules: fully embody this perspective and voice. ")
	sb.WriteString("Never mention the philosopher or the author by name, and never break character. ")
	sb.WriteString("Answer in 2-3 sentences.\n\n")

	if in.PeerContext == "" {
		fmt.Fprintf(&sb, "Open a dialogue on the topic: %q. State your position.", in.Topic)
	} else {
		fmt.Fprintf(&sb, "The dialogue is about: %q.\n", in.Topic)
		fmt.Fprintf(&sb, "Your interlocutor just said:\n%s\n\nRespond to them directly.", in.PeerContext)
	}
	return sb.String()
}
