package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/llm"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/tailor"
	"github.com/tailorjob/backend/internal/utils"
)

const (
	maxChatMessageChars = 4000
	chatHistoryLimit    = 100
)

type ChatResponder interface {
	Reply(ctx context.Context, in tailor.ChatInput, onChunk func(string)) (tailor.ChatReply, error)
}

type ChatResult struct {
	UserMessage models.ChatMessage `json:"user_message"`
	AIResponse  models.ChatMessage `json:"ai_response"`
	// Revision is set when the reply revised the tailored CV.
	Revision *models.CVRevision `json:"revision,omitempty"`
}

type ChatHistory struct {
	TailoredCVID string               `json:"tailored_cv_id"`
	Messages     []models.ChatMessage `json:"messages"`
}

type ChatService interface {
	// Send stores the user turn, streams the assistant reply to live listeners
	// and stores it, appending a revision when the reply revises the CV.
	Send(ctx context.Context, userID, cvID, jobID, content string) (*ChatResult, error)
	History(ctx context.Context, userID, cvID, jobID string) (*ChatHistory, error)
}

type chatService struct {
	tailored  pgrepo.TailorRepository
	chats     pgrepo.ChatRepository
	jobs      pgrepo.JobRepository
	responder ChatResponder
	publisher queue.Publisher
	log       *logrus.Entry
	now       func() time.Time
}

func NewChatService(tailored pgrepo.TailorRepository, chats pgrepo.ChatRepository, jobs pgrepo.JobRepository, r ChatResponder, pub queue.Publisher, log *logrus.Entry) ChatService {
	return &chatService{
		tailored:  tailored,
		chats:     chats,
		jobs:      jobs,
		responder: r,
		publisher: pub,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatService) Send(ctx context.Context, userID, cvID, jobID, content string) (*ChatResult, error) {
	const op = "ChatService.Send"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Message content is required", nil)
	}
	if len(content) > maxChatMessageChars {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Message is too long", nil)
	}
	row, err := getTailored(ctx, s.tailored, op, userID, cvID, jobID)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "tailored_cv_id": row.ID})

	history, err := s.chats.History(ctx, userID, cvID, jobID, chatHistoryLimit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load chat history", err)
	}
	userMsg := s.message(userID, cvID, jobID, "user", content)
	if err := s.chats.Insert(ctx, &userMsg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save message", err)
	}

	in := tailor.ChatInput{History: history, Message: content}
	if len(row.TailoredContent) > 0 {
		_ = json.Unmarshal(row.TailoredContent, &in.Content)
	}
	if job, err := s.jobs.GetByID(ctx, userID, jobID); err == nil {
		in.JobTitle = job.Title
	}

	channel := queue.TailorChannel(cvID, jobID)
	seq := 0
	reply, err := s.responder.Reply(ctx, in, func(chunk string) {
		seq++
		s.publish(ctx, channel, queue.Event{Type: queue.EventChunk, Seq: seq, Chunk: chunk})
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, utils.E(utils.CodeUnavailable, op, "AI chat is not configured", err)
		}
		log.WithError(err).Error("chat reply failed")
		return nil, utils.E(utils.CodeInternal, op, "Failed to generate response", err)
	}

	aiMsg := s.message(userID, cvID, jobID, "assistant", reply.Message)
	if err := s.chats.Insert(ctx, &aiMsg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save response", err)
	}
	res := &ChatResult{UserMessage: userMsg, AIResponse: aiMsg}

	if reply.Updated != nil {
		doc, err := json.Marshal(reply.Updated)
		if err == nil {
			res.Revision, err = s.tailored.AppendRevision(ctx, row.ID, doc, utils.Truncate(content, 200, "..."), "ai")
		}
		if err != nil {
			log.WithError(err).Warn("failed to store chat revision")
		}
	}
	done := queue.Event{Type: queue.EventComplete, Message: reply.Message}
	if res.Revision != nil {
		done.Data = res.Revision
	}
	s.publish(ctx, channel, done)
	log.WithField("revised", res.Revision != nil).Info("chat reply stored")
	return res, nil
}

func (s *chatService) History(ctx context.Context, userID, cvID, jobID string) (*ChatHistory, error) {
	const op = "ChatService.History"

	row, err := getTailored(ctx, s.tailored, op, userID, cvID, jobID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chats.History(ctx, userID, cvID, jobID, chatHistoryLimit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load chat history", err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return &ChatHistory{TailoredCVID: row.ID, Messages: msgs}, nil
}

func (s *chatService) message(userID, cvID, jobID, role, content string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		CVID:      cvID,
		JobID:     jobID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

// publish is best effort; listeners may have gone away.
func (s *chatService) publish(ctx context.Context, channel string, ev queue.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, channel, ev); err != nil {
		s.log.WithError(err).WithField("channel", channel).Debug("publish failed")
	}
}
