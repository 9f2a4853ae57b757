package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"mcq-queue-service/internal/domain"
)

// Bot is the subset of the bot API the sender needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender posts MCQs as Telegram quiz polls. The receipt ref is the poll id.
type Sender struct {
	bot            Bot
	announceBefore string
	logger         *zap.Logger

	mu        sync.Mutex
	announced int64
}

// NewSender builds a sender. When announceBefore is non-empty it is posted as a plain message
// ahead of each MCQ's poll, once per MCQ: retries of a failed poll skip it. A failed announcement
// does not block the poll and is tried again on the next attempt.
func NewSender(bot Bot, announceBefore string, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{bot: bot, announceBefore: strings.TrimSpace(announceBefore), logger: logger}
}

func (s *Sender) SendQuiz(ctx context.Context, destination string, quiz domain.Quiz) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	chat, err := ParseDestination(destination)
	if err != nil {
		return domain.Receipt{}, err
	}

	if s.announceBefore != "" && !s.alreadyAnnounced(quiz.ID) {
		if err := s.SendAnnouncement(ctx, destination, s.announceBefore); err != nil {
			s.logger.Warn("pre-poll announcement failed", zap.Int64("mcq_id", quiz.ID), zap.Error(err))
		} else {
			s.mu.Lock()
			s.announced = quiz.ID
			s.mu.Unlock()
		}
	}

	poll := tgbotapi.NewPoll(chat.ID, quiz.Question, quiz.Options...)
	poll.ChannelUsername = chat.Username
	poll.Type = "quiz"
	poll.IsAnonymous = true
	poll.CorrectOptionID = int64(quiz.CorrectIndex)

	msg, err := s.bot.Send(poll)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil || msg.Poll.ID == "" {
		return domain.Receipt{Ref: strconv.Itoa(msg.MessageID)}, nil
	}
	return domain.Receipt{Ref: msg.Poll.ID}, nil
}

func (s *Sender) alreadyAnnounced(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announced == id
}

func (s *Sender) SendAnnouncement(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat, err := ParseDestination(destination)
	if err != nil {
		return err
	}
	var msg tgbotapi.MessageConfig
	if chat.Username != "" {
		msg = tgbotapi.NewMessageToChannel(chat.Username, text)
	} else {
		msg = tgbotapi.NewMessage(chat.ID, text)
	}
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Chat identifies a Telegram destination either by numeric id or by @username.
type Chat struct {
	ID       int64
	Username string
}

var errDestination = errors.New("destination must be a numeric chat id or an @channel username")

// ParseDestination accepts "-1001234567890", "5891731303" or "@channel".
func ParseDestination(dest string) (Chat, error) {
	dest = strings.TrimSpace(dest)
	if strings.HasPrefix(dest, "@") && len(dest) > 1 {
		return Chat{Username: dest}, nil
	}
	id, err := strconv.ParseInt(dest, 10, 64)
	if err != nil || id == 0 {
		return Chat{}, fmt.Errorf("%w: %q", errDestination, dest)
	}
	return Chat{ID: id}, nil
}
