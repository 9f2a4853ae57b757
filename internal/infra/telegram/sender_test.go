package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mcq-queue-service/internal/domain"
)

type fakeBot struct {
	sent     []tgbotapi.Chattable
	failPoll error
	failText error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	switch c.(type) {
	case tgbotapi.SendPollConfig:
		if b.failPoll != nil {
			return tgbotapi.Message{}, b.failPoll
		}
		return tgbotapi.Message{MessageID: 42, Poll: &tgbotapi.Poll{ID: "poll-123"}}, nil
	case tgbotapi.MessageConfig:
		if b.failText != nil {
			return tgbotapi.Message{}, b.failText
		}
		return tgbotapi.Message{MessageID: 41}, nil
	}
	return tgbotapi.Message{}, nil
}

func quiz() domain.Quiz {
	return domain.Quiz{ID: 1, Question: "2+2=?", Options: []string{"3", "4", "5"}, CorrectIndex: 1}
}

func TestSendQuizPostsQuizPoll(t *testing.T) {
	bot := &fakeBot{}
	sender := NewSender(bot, "", nil)

	receipt, err := sender.SendQuiz(context.Background(), "-1001234567890", quiz())
	require.NoError(t, err)
	assert.Equal(t, "poll-123", receipt.Ref)

	require.Len(t, bot.sent, 1)
	poll, ok := bot.sent[0].(tgbotapi.SendPollConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-1001234567890), poll.ChatID)
	assert.Equal(t, "quiz", poll.Type)
	assert.Equal(t, int64(1), poll.CorrectOptionID)
	assert.Equal(t, []string{"3", "4", "5"}, poll.Options)
	assert.Equal(t, "2+2=?", poll.Question)
}

func TestSendQuizToChannelUsername(t *testing.T) {
	bot := &fakeBot{}
	sender := NewSender(bot, "Next question!", nil)

	_, err := sender.SendQuiz(context.Background(), "@edhubquiz", quiz())
	require.NoError(t, err)
	require.Len(t, bot.sent, 2)

	intro, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "@edhubquiz", intro.ChannelUsername)
	assert.Equal(t, "Next question!", intro.Text)

	poll := bot.sent[1].(tgbotapi.SendPollConfig)
	assert.Equal(t, "@edhubquiz", poll.ChannelUsername)
	assert.Zero(t, poll.ChatID)
}

func TestAnnouncementFailureDoesNotBlockPoll(t *testing.T) {
	bot := &fakeBot{failText: errors.New("flood")}
	sender := NewSender(bot, "heads up", nil)

	receipt, err := sender.SendQuiz(context.Background(), "5891731303", quiz())
	require.NoError(t, err)
	assert.Equal(t, "poll-123", receipt.Ref)
}

func TestSendQuizFailure(t *testing.T) {
	bot := &fakeBot{failPoll: errors.New("Too Many Requests: retry after 5")}
	sender := NewSender(bot, "", nil)

	_, err := sender.SendQuiz(context.Background(), "5891731303", quiz())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry after")

	_, err = sender.SendQuiz(context.Background(), "not-a-chat", quiz())
	assert.ErrorIs(t, err, errDestination)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sender.SendQuiz(ctx, "5891731303", quiz())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetriedPollIsAnnouncedOnce(t *testing.T) {
	bot := &fakeBot{failPoll: errors.New("Bad Request: chat not found")}
	sender := NewSender(bot, "Next question!", nil)

	for i := 0; i < 3; i++ {
		_, err := sender.SendQuiz(context.Background(), "@quiz", quiz())
		require.Error(t, err)
	}
	assert.Equal(t, 1, countTexts(bot.sent))

	bot.failPoll = nil
	_, err := sender.SendQuiz(context.Background(), "@quiz", quiz())
	require.NoError(t, err)
	assert.Equal(t, 1, countTexts(bot.sent))

	next := quiz()
	next.ID = 2
	_, err = sender.SendQuiz(context.Background(), "@quiz", next)
	require.NoError(t, err)
	assert.Equal(t, 2, countTexts(bot.sent))
}

func countTexts(sent []tgbotapi.Chattable) int {
	n := 0
	for _, c := range sent {
		if _, ok := c.(tgbotapi.MessageConfig); ok {
			n++
		}
	}
	return n
}

func TestParseDestination(t *testing.T) {
	chat, err := ParseDestination(" @quiz ")
	require.NoError(t, err)
	assert.Equal(t, Chat{Username: "@quiz"}, chat)

	chat, err = ParseDestination("-100200")
	require.NoError(t, err)
	assert.Equal(t, Chat{ID: -100200}, chat)

	for _, bad := range []string{"", "@", "0", "chat"} {
		_, err := ParseDestination(bad)
		assert.Error(t, err, bad)
	}
}
