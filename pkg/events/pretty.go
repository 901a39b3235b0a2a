package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	deltaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	finalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// AddPrettyHandlers prints a styled stream of dialogue events to a writer
// (optional utility, registered on the firehose topic).
func AddPrettyHandlers(router *EventRouter, w io.Writer) {
	router.AddHandler("pretty", TopicFirehose, func(msg *message.Message) error {
		defer msg.Ack()
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}
		switch ev := e.(type) {
		case *EventGenerationStart:
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("— Speaker %d begins (%s) —", ev.Speaker, ev.Metadata().ConversationID)))
		case *EventChunk:
			if ev.Delta != "" {
				_, _ = fmt.Fprint(w, deltaStyle.Render(ev.Delta))
			}
		case *EventGenerationComplete:
			fmt.Fprintln(w, "")
			fmt.Fprintln(w, finalStyle.Render(fmt.Sprintf("— Speaker %d done (seq %d) —", ev.Speaker, ev.Message.Sequence)))
		case *EventGenerationError:
			fmt.Fprintln(w, "")
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Speaker %d error: %s", ev.Speaker, ev.ErrorString)))
		case *EventStatus:
			fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf("[%s] turn=%d exchanges=%d", ev.Status, ev.Turn, ev.ExchangeCount)))
		case *EventClosed:
			fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf("conversation %s closed", ev.Metadata().ConversationID)))
		}
		return nil
	})
}
