package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/transport/command"
)

// Welcome is the reply to /start.
const Welcome = "Welcome! " + command.Usage + "\n\n" +
	"Commands: /next shows the next MCQ, /pending counts the queue, /remove <id> drops an MCQ, /status shows the scheduler."

// Bot is the subset of the bot API the front end uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// StatusSource exposes the scheduler snapshot.
type StatusSource interface {
	Status(ctx context.Context) domain.Status
}

// SubmissionObserver is notified of every admission attempt.
type SubmissionObserver interface {
	ObserveSubmission(source string, err error)
}

// Frontend answers chat commands and turns uploads into queued MCQs.
type Frontend struct {
	bot       Bot
	admission *app.AdmissionService
	status    StatusSource
	observer  SubmissionObserver
	logger    *zap.Logger
}

func NewFrontend(bot Bot, admission *app.AdmissionService, status StatusSource, observer SubmissionObserver, logger *zap.Logger) *Frontend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frontend{bot: bot, admission: admission, status: status, observer: observer, logger: logger}
}

// Run consumes updates until ctx is done or the channel closes.
func (f *Frontend) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	f.logger.Info("telegram front end listening")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			f.handleUpdate(ctx, update)
		}
	}
}

func (f *Frontend) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	reply := f.Reply(ctx, msg.Text, uploaderOf(msg.From))
	if reply == "" {
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := f.bot.Send(out); err != nil {
		f.logger.Warn("telegram reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// Reply computes the bot's answer to one chat message.
func (f *Frontend) Reply(ctx context.Context, text, uploader string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		if command.LooksLikeUpload(text) {
			return f.add(ctx, text, uploader)
		}
		return "Invalid format! " + command.Usage
	}

	name, args := splitCommand(text)
	switch name {
	case "start", "help":
		return Welcome
	case "add":
		return f.add(ctx, args, uploader)
	case "next":
		return f.next(ctx)
	case "pending":
		n, err := f.admission.Pending(ctx)
		if err != nil {
			return f.failure("count pending", err)
		}
		return fmt.Sprintf("%d MCQ(s) pending.", n)
	case "remove":
		return f.remove(ctx, args)
	case "status":
		s := f.status.Status(ctx)
		return fmt.Sprintf("Scheduler %s, %d pending, posting every %s.", s.State, s.Pending, s.Interval)
	case "announce":
		err := f.admission.Announce(ctx, args)
		switch {
		case err == nil:
			return "Announcement sent."
		case domain.IsValidation(err):
			return "Usage: /announce <text>"
		case errors.Is(err, domain.ErrAnnouncementsUnsupported):
			return "Announcements are not available for this destination."
		default:
			return f.failure("announce", err)
		}
	default:
		return "Unknown command. Send /start for help."
	}
}

func (f *Frontend) add(ctx context.Context, text, uploader string) string {
	sub, err := command.Parse(text, uploader)
	if err == nil {
		var item domain.MCQ
		item, err = f.admission.Submit(ctx, sub)
		if err == nil {
			f.observe(nil)
			return fmt.Sprintf("MCQ #%d added successfully!", item.ID)
		}
	}
	f.observe(err)
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("Invalid MCQ: %s %s.\n\n%s", ve.Field, ve.Message, command.Usage)
	}
	return f.failure("submit", err)
}

func (f *Frontend) next(ctx context.Context) string {
	item, err := f.admission.Preview(ctx)
	if err != nil {
		return f.failure("preview", err)
	}
	if item == nil {
		return "The queue is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Next up #%d: %s\n", item.ID, item.Question)
	for i, opt := range item.Options {
		marker := ""
		if i == item.CorrectIndex {
			marker = " ✓"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, opt, marker)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f *Frontend) remove(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return "Usage: /remove <id>"
	}
	err = f.admission.Remove(ctx, id)
	switch {
	case err == nil:
		return fmt.Sprintf("MCQ #%d removed.", id)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("No MCQ #%d in the queue.", id)
	default:
		return f.failure("remove", err)
	}
}

func (f *Frontend) failure(op string, err error) string {
	f.logger.Error("telegram command failed", zap.String("op", op), zap.Error(err))
	return "Something went wrong, please try again later."
}

func (f *Frontend) observe(err error) {
	if f.observer != nil {
		f.observer.ObserveSubmission("telegram", err)
	}
}

// splitCommand turns "/add@MyBot q || a" into ("add", "q || a").
func splitCommand(text string) (string, string) {
	text = strings.TrimPrefix(text, "/")
	name, args, _ := strings.Cut(text, " ")
	if nl := strings.IndexByte(name, '\n'); nl >= 0 {
		args = name[nl+1:] + " " + args
		name = name[:nl]
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}

func uploaderOf(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}
