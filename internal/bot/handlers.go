package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/example/quizbot/internal/charts"
	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/internal/stats"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const ratingSize = 10

// handleStart greets the user and starts registration when needed
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	name := "друг"
	if message.From != nil && message.From.FirstName != "" {
		name = message.From.FirstName
	}
	greeting := fmt.Sprintf("👋 Привет, <b>%s</b>!\n\nЯ помогу подготовиться к экзаменам с помощью коротких викторин.", html.EscapeString(name))
	if err := b.sendHTML(chatID, greeting, nil); err != nil {
		return err
	}

	registered, err := b.store.Users.IsRegistered(ctx, chatID)
	if err != nil {
		b.logger.Error("failed to check registration", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "Произошла ошибка при регистрации. Пожалуйста, попробуйте ещё раз позже.")
	}
	if registered {
		return b.showStartButtons(chatID, false)
	}

	if err := b.sessions.Put(ctx, chatID, &session.State{Step: session.StepRegName}); err != nil {
		return fmt.Errorf("failed to start registration: %w", err)
	}
	return b.sendWithKeyboard(chatID, "Пожалуйста, введите ваше имя:", tgbotapi.NewRemoveKeyboard(true))
}

// handleRegName stores the first name and asks for the last name
func (b *Bot) handleRegName(ctx context.Context, message *tgbotapi.Message, state *session.State) error {
	chatID := message.Chat.ID
	name := strings.TrimSpace(message.Text)
	if name == "" {
		return b.sendText(chatID, "Пожалуйста, введите ваше имя:")
	}

	state.Step = session.StepRegLastName
	state.Name = name
	if err := b.sessions.Put(ctx, chatID, state); err != nil {
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return b.sendText(chatID, "Введите вашу фамилию.")
}

// handleRegLastName completes registration
func (b *Bot) handleRegLastName(ctx context.Context, message *tgbotapi.Message, state *session.State) error {
	chatID := message.Chat.ID
	lastName := strings.TrimSpace(message.Text)
	if lastName == "" {
		return b.sendText(chatID, "Введите вашу фамилию.")
	}

	user := &models.User{
		ChatID:    chatID,
		Name:      state.Name,
		LastName:  lastName,
		CreatedAt: b.now(),
	}
	if err := b.store.Users.Create(ctx, user); err != nil {
		b.logger.Error("failed to register user", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "Произошла ошибка при регистрации. Пожалуйста, попробуйте ещё раз позже.")
	}
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
	}

	b.logger.Info("user registered", "chat_id", chatID)
	if err := b.sendText(chatID, "Вы успешно зарегистрированы!"); err != nil {
		return err
	}
	return b.showStartButtons(chatID, b.isAdmin(senderID(message)))
}

// showStartButtons shows the main menu
func (b *Bot) showStartButtons(chatID int64, admin bool) error {
	if admin {
		return b.sendWithKeyboard(chatID, "Вы вошли как администратор.", adminKeyboard())
	}
	return b.sendWithKeyboard(chatID, "Готов начать? Давай разбираться вместе! 🚀", startKeyboard())
}

// handleHelp lists the available commands
func (b *Bot) handleHelp(chatID int64, admin bool) error {
	helpText := `<b>Как пользоваться ботом</b>

📚 <b>Начать викторину</b> - выберите предмет и уровень сложности, затем ответьте на 10 вопросов.
📈 <b>Моя статистика</b> - график ваших результатов по предметам.
🏆 <b>Рейтинг</b> - лучшие участники по среднему баллу.

<b>Команды:</b>
/start - Начать работу с ботом
/quiz - Начать викторину
/stats - Показать статистику
/rating - Показать рейтинг
/cancel - Отменить текущее действие
/help - Показать эту справку`

	if admin {
		helpText += `

<b>Администратору:</b>
📊 Статистика пользователей, ⚙️ Настройки и 📥 Выгрузка в Excel доступны в меню.`
	}
	return b.sendHTML(chatID, helpText, b.menuKeyboard(admin))
}

// handleStartQuiz starts a quiz for a registered user
func (b *Bot) handleStartQuiz(ctx context.Context, chatID int64) error {
	if ok, err := b.requireRegistration(ctx, chatID); !ok {
		return err
	}
	return b.quiz.Begin(ctx, chatID)
}

// handleRestartQuiz drops the current quiz and starts a new one
func (b *Bot) handleRestartQuiz(ctx context.Context, chatID int64) error {
	if ok, err := b.requireRegistration(ctx, chatID); !ok {
		return err
	}
	return b.quiz.Restart(ctx, chatID)
}

func (b *Bot) requireRegistration(ctx context.Context, chatID int64) (bool, error) {
	registered, err := b.store.Users.IsRegistered(ctx, chatID)
	if err != nil {
		b.logger.Error("failed to check registration", "chat_id", chatID, "error", err)
		return false, b.sendText(chatID, "Произошла ошибка. Пожалуйста, попробуйте ещё раз позже.")
	}
	if !registered {
		return false, b.sendText(chatID, "Сначала зарегистрируйтесь с помощью команды /start.")
	}
	return true, nil
}

// handleMyStats sends the statistics chart of the user
func (b *Bot) handleMyStats(ctx context.Context, chatID int64) error {
	s, err := b.store.Users.GetStatistics(ctx, chatID)
	if errors.Is(err, models.ErrMalformedStatistics) {
		b.logger.Error("malformed statistics", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "Ошибка при обработке статистики ⚠️")
	}
	if err != nil {
		b.logger.Error("failed to load statistics", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "У тебя пока нет сохранённой статистики 📭")
	}

	year := charts.CurrentYear()
	png, err := charts.Render(charts.Title("", year), stats.Flatten(s, year))
	if errors.Is(err, charts.ErrNoData) {
		return b.sendText(chatID, "У тебя пока нет сохранённой статистики 📭")
	}
	if err != nil {
		return fmt.Errorf("failed to render statistics: %w", err)
	}
	return b.sendChart(chatID, fmt.Sprintf("stats_%d.png", chatID), png, "Вот твоя статистика 📊")
}

func (b *Bot) sendChart(chatID int64, name string, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	return b.sendMessage(photo)
}

// handleRating sends the top users by average score
func (b *Bot) handleRating(ctx context.Context, chatID int64) error {
	entries, err := b.store.Ratings.Top(ctx, ratingSize)
	if err != nil {
		b.logger.Error("failed to load rating", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "Рейтинг недоступен в данный момент.")
	}
	if len(entries) == 0 {
		return b.sendText(chatID, "Рейтинг недоступен в данный момент.")
	}
	return b.sendHTML(chatID, formatRating(entries), nil)
}

func formatRating(entries []models.RatingEntry) string {
	var sb strings.Builder
	sb.WriteString("🏆 <b>Рейтинг участников</b>\n\n")
	for i, e := range entries {
		name := strings.TrimSpace(e.Name + " " + e.LastName)
		fmt.Fprintf(&sb, "%d. %s: %.2f\n", i+1, html.EscapeString(name), e.AvgScore)
	}
	return sb.String()
}
