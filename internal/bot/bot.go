package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/quizbot/internal/config"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options holds the collaborators of the bot
type Options struct {
	Store            *database.Store
	Sessions         session.Store
	Generator        quiz.Generator
	Recorder         quiz.Recorder
	Admins           config.AdminSet
	ProgressInterval time.Duration
	Logger           *slog.Logger
	HTTPClient       *http.Client // used to download uploaded files
}

// Bot represents the Telegram bot application
type Bot struct {
	api        *tgbotapi.BotAPI
	client     sender
	store      *database.Store
	sessions   session.Store
	quiz       *quiz.Controller
	admins     config.AdminSet
	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time
}

// New creates a bot on top of an authorized API client
func New(api *tgbotapi.BotAPI, opts Options) *Bot {
	b := newBot(api, opts)
	b.api = api
	return b
}

func newBot(client sender, opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	b := &Bot{
		client:     client,
		store:      opts.Store,
		sessions:   opts.Sessions,
		admins:     opts.Admins,
		logger:     logger,
		httpClient: httpClient,
		now:        time.Now,
	}
	b.quiz = quiz.NewController(
		opts.Sessions,
		opts.Generator,
		opts.Recorder,
		opts.Store.Subjects,
		&quizView{b: b},
		opts.ProgressInterval,
		logger,
	)
	return b
}

// Start receives updates until ctx is cancelled. Every update is handled in
// its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("bot API is not initialized")
	}
	b.logger.Info("Authorized on account", "username", b.api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins.IsAdmin(userID)
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
	if err != nil && !errors.Is(err, quiz.ErrStale) {
		b.logger.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
	}
}

func senderID(message *tgbotapi.Message) int64 {
	if message.From != nil {
		return message.From.ID
	}
	return message.Chat.ID
}

// handleMessage routes commands, menu buttons and free text
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.Chat == nil {
		return fmt.Errorf("invalid message: chat is missing")
	}
	chatID := message.Chat.ID
	admin := b.isAdmin(senderID(message))
	if admin {
		if err := b.store.Counters.Increment(ctx, senderID(message), models.CommandsUsed, 1); err != nil {
			b.logger.Error("failed to count admin command", "chat_id", chatID, "error", err)
		}
	}

	if message.IsCommand() {
		return b.handleCommand(ctx, message, admin)
	}

	state, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.logger.Error("failed to load session", "chat_id", chatID, "error", err)
	}

	// names are free text, menu labels are not interpreted during registration
	if state != nil {
		switch state.Step {
		case session.StepRegName:
			return b.handleRegName(ctx, message, state)
		case session.StepRegLastName:
			return b.handleRegLastName(ctx, message, state)
		}
	}

	text := strings.TrimSpace(message.Text)
	if handled, err := b.handleMenuText(ctx, message, text, admin); handled {
		return err
	}

	if state != nil {
		switch state.Step {
		case session.StepQuizSubject:
			return b.quiz.ChooseSubject(ctx, chatID, text)
		case session.StepQuizLevel:
			return b.sendText(chatID, "Выберите уровень сложности, используя кнопки выше.")
		case session.StepQuizGenerating:
			return b.sendText(chatID, "⏳ Викторина генерируется, подождите немного.")
		case session.StepQuizQuestion:
			return b.sendText(chatID, "Выберите вариант ответа, используя кнопки под вопросом.")
		case session.StepAddSubject, session.StepDeleteSubject, session.StepImportSubjects:
			if admin {
				return b.handleAdminInput(ctx, message, state)
			}
		}
	}

	if text == "" && message.Document == nil {
		return b.sendWithKeyboard(chatID, "Пожалуйста, введите корректное сообщение или выберите одну из доступных опций, используя кнопки ниже.", b.menuKeyboard(admin))
	}
	return b.sendWithKeyboard(chatID, "Пожалуйста, выберите одну из доступных опций, используя кнопки ниже.", b.menuKeyboard(admin))
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, admin bool) error {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		if admin {
			return b.handleAdminStart(ctx, chatID)
		}
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(chatID, admin)
	case "quiz":
		return b.handleStartQuiz(ctx, chatID)
	case "stats":
		if admin {
			return b.handleUsersStats(ctx, chatID)
		}
		return b.handleMyStats(ctx, chatID)
	case "rating", "raiting":
		return b.handleRating(ctx, chatID)
	case "cancel":
		if err := b.sessions.Delete(ctx, chatID); err != nil {
			b.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
		}
		return b.sendWithKeyboard(chatID, "Действие отменено.", b.menuKeyboard(admin))
	default:
		return b.sendWithKeyboard(chatID, "Неизвестная команда. Используйте /help, чтобы увидеть список команд.", b.menuKeyboard(admin))
	}
}

// handleMenuText handles reply keyboard buttons. It reports whether text was a
// known button.
func (b *Bot) handleMenuText(ctx context.Context, message *tgbotapi.Message, text string, admin bool) (bool, error) {
	chatID := message.Chat.ID
	switch text {
	case btnStartQuiz:
		return true, b.handleStartQuiz(ctx, chatID)
	case btnMyStats:
		return true, b.handleMyStats(ctx, chatID)
	case btnRating:
		return true, b.handleRating(ctx, chatID)
	case btnHelp:
		return true, b.handleHelp(chatID, admin)
	case btnUsersStats, btnSettings, btnExport, btnBack, btnManageUsers,
		btnQuizSettings, btnManageSubjects, btnAddSubject, btnDeleteSubject, btnImportSubjects:
		if !admin {
			return true, b.sendText(chatID, "У вас нет прав для выполнения этой команды.")
		}
		return true, b.handleAdminMenu(ctx, chatID, text)
	}
	return false, nil
}

// handleCallbackQuery handles inline button presses
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		b.answerCallback(callback.ID, "")
		return nil
	}
	ref := quiz.Ref{
		ChatID:     callback.Message.Chat.ID,
		MessageID:  callback.Message.MessageID,
		CallbackID: callback.ID,
	}
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "level_"):
		return b.quiz.ChooseLevel(ctx, ref, data)

	case strings.HasPrefix(data, callbackAnswerPrefix):
		index, key, ok := parseAnswerCallback(data)
		if !ok {
			b.answerCallback(callback.ID, "Некорректный ответ.")
			return nil
		}
		err := b.quiz.Answer(ctx, ref, index, key)
		if !errors.Is(err, quiz.ErrStale) {
			b.answerCallback(callback.ID, "")
		}
		return err

	case data == callbackNextQuestion:
		err := b.quiz.Next(ctx, ref)
		if !errors.Is(err, quiz.ErrStale) {
			b.answerCallback(callback.ID, "")
		}
		return err

	case data == callbackNextQuiz:
		b.answerCallback(callback.ID, "")
		return b.handleRestartQuiz(ctx, ref.ChatID)

	case data == callbackMainMenu:
		b.answerCallback(callback.ID, "")
		return b.showStartButtons(ref.ChatID, callback.From != nil && b.isAdmin(callback.From.ID))

	case strings.HasPrefix(data, callbackDeletePrefix):
		if callback.From == nil || !b.isAdmin(callback.From.ID) {
			b.answerCallback(callback.ID, "У вас нет прав для выполнения этой команды.")
			return nil
		}
		return b.handleDeleteUser(ctx, ref, strings.TrimPrefix(data, callbackDeletePrefix))
	}

	b.answerCallback(callback.ID, "")
	b.logger.Warn("unknown callback data", "chat_id", ref.ChatID, "data", data)
	return nil
}

func (b *Bot) menuKeyboard(admin bool) tgbotapi.ReplyKeyboardMarkup {
	if admin {
		return adminKeyboard()
	}
	return startKeyboard()
}

// sendMessage sends a prepared message
func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	if _, err := b.client.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	return b.sendMessage(msg)
}

func (b *Bot) sendHTML(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return b.sendMessage(msg)
}

// editMessage replaces the text of a sent message and drops its inline keyboard
func (b *Bot) editMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	return b.sendMessage(edit)
}

// answerCallback stops the button spinner, showing text when it is not empty
func (b *Bot) answerCallback(callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := b.client.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("failed to answer callback", "error", err)
	}
}
