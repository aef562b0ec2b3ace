package controller

import (
	"context"

	"github.com/aristath/taskflow/internal/core"
)

// Question is a message from an agent waiting for a human reply.
type Question struct {
	TaskID     string
	Content    string
	responseCh chan Answer
}

// Answer is the human's reply.
type Answer struct {
	Content string
	Error   error
}

// AnswerFunc produces the reply to a question, e.g. by prompting on a
// terminal.
type AnswerFunc func(ctx context.Context, taskID string, question string) (string, error)

// QAChannel serializes questions from concurrently running agents to a
// single human. It implements core.Human.
type QAChannel struct {
	questionCh chan Question
	answerFn   AnswerFunc
	done       chan struct{}
}

// NewQAChannel creates a channel buffering up to bufferSize pending
// questions.
func NewQAChannel(bufferSize int, answerFn AnswerFunc) *QAChannel {
	return &QAChannel{
		questionCh: make(chan Question, bufferSize),
		answerFn:   answerFn,
		done:       make(chan struct{}),
	}
}

// Start launches the question handler goroutine. It runs until ctx is
// cancelled.
func (qac *QAChannel) Start(ctx context.Context) {
	go qac.handleQuestions(ctx)
}

func (qac *QAChannel) handleQuestions(ctx context.Context) {
	defer close(qac.done)

	for {
		select {
		case <-ctx.Done():
			return
		case q := <-qac.questionCh:
			content, err := qac.answerFn(ctx, q.TaskID, q.Content)

			select {
			case <-ctx.Done():
				q.responseCh <- Answer{Error: ctx.Err()}
				return
			default:
				q.responseCh <- Answer{Content: content, Error: err}
			}
		}
	}
}

// Ask sends question on behalf of the active task and waits for the answer.
// The exchange is added to the ambient flow history.
func (qac *QAChannel) Ask(ctx context.Context, question string) (string, error) {
	var taskID string
	if t := core.CurrentTask(ctx); t != nil {
		taskID = t.ID()
	}

	responseCh := make(chan Answer, 1)
	q := Question{TaskID: taskID, Content: question, responseCh: responseCh}

	select {
	case qac.questionCh <- q:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case answer := <-responseCh:
		if answer.Error != nil {
			return "", answer.Error
		}
		if f := core.FlowFrom(ctx); f != nil {
			f.AddMessage(ctx, core.Message{TaskID: taskID, Role: core.RoleHuman, Content: answer.Content})
		}
		return answer.Content, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stop blocks until the handler goroutine has exited.
func (qac *QAChannel) Stop() {
	<-qac.done
}
