package session

import "context"

// Display is the terminal side of a session.
type Display interface {
	Welcome()
	Clear()
	Divider()
	AssistantText(text string)
	SystemNotice(text string)
	ToolUsage(name string)
	// ReadLine blocks for the next line of input. It returns io.EOF at end
	// of input and ctx.Err() when ctx is done first.
	ReadLine(ctx context.Context) (string, error)
}
