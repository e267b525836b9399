package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
)

// ThreadManager persists research exchanges per thread. A nil manager, or one
// without a repository, passes messages through untouched.
type ThreadManager struct {
	threadRepo  model.ThreadRepository
	maxMessages int
}

func NewThreadManager(threadRepo model.ThreadRepository, config model.ThreadConfig) *ThreadManager {
	return &ThreadManager{
		threadRepo:  threadRepo,
		maxMessages: config.MaxMessages,
	}
}

// Enabled reports whether threads are persisted.
func (tm *ThreadManager) Enabled() bool {
	return tm != nil && tm.threadRepo != nil
}

// PrepareThread stores the incoming messages on the thread and returns the
// recent thread history, which ends with them.
func (tm *ThreadManager) PrepareThread(ctx context.Context, threadID string, incoming []*schema.Message) ([]*schema.Message, error) {
	if !tm.Enabled() || threadID == "" {
		return trimTail(incoming, 0), nil
	}

	for _, msg := range incoming {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if err := tm.threadRepo.AddMessage(ctx, threadID, msg); err != nil {
			return nil, err
		}
	}

	history, err := tm.threadRepo.LoadHistory(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, tm.maxMessages), nil
}

func (tm *ThreadManager) SaveResponse(ctx context.Context, threadID string, content string) error {
	if !tm.Enabled() || threadID == "" {
		return nil
	}
	return tm.threadRepo.AddMessage(ctx, threadID, schema.AssistantMessage(content, nil))
}

// History returns the full stored thread.
func (tm *ThreadManager) History(ctx context.Context, threadID string) (*model.ThreadHistory, error) {
	if !tm.Enabled() {
		return &model.ThreadHistory{ThreadID: threadID, Messages: []*schema.Message{}}, nil
	}
	return tm.threadRepo.LoadHistory(ctx, threadID)
}

// Clear deletes a stored thread. It reports false when storage is disabled or
// the thread holds no messages.
func (tm *ThreadManager) Clear(ctx context.Context, threadID string) (bool, error) {
	if !tm.Enabled() || threadID == "" {
		return false, nil
	}
	n, err := tm.threadRepo.GetMessageCount(ctx, threadID)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := tm.threadRepo.ClearHistory(ctx, threadID); err != nil {
		return false, err
	}
	return true, nil
}

// ====================== Helper function ======================

// trimTail copies the last maxMessages messages; maxMessages <= 0 keeps all.
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	source := messages
	if maxMessages > 0 && len(messages) > maxMessages {
		source = messages[len(messages)-maxMessages:]
	}
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
