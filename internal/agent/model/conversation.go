package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ThreadRepository interface {
	// AddMessage appends a message to the history of the given thread
	AddMessage(ctx context.Context, threadID string, message *schema.Message) error

	// LoadHistory retrieves the conversation history for a thread
	LoadHistory(ctx context.Context, threadID string) (*ThreadHistory, error)

	// ClearHistory removes all conversation history for a thread
	ClearHistory(ctx context.Context, threadID string) error

	// GetMessageCount returns the number of messages in the thread
	GetMessageCount(ctx context.Context, threadID string) (int, error)
}

// ThreadHistory represents a loaded research thread.
type ThreadHistory struct {
	ThreadID string
	Messages []*schema.Message
}
