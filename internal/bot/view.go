package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const progressText = "⏳ Генерируется квиз"

// quizView renders quiz events as Telegram messages
type quizView struct {
	b *Bot
}

func (v *quizView) AskSubject(_ context.Context, chatID int64, subjects []string) error {
	return v.b.sendWithKeyboard(chatID, "Выберите предмет:", subjectChoiceKeyboard(subjects))
}

func (v *quizView) AskLevel(_ context.Context, chatID int64) error {
	if err := v.b.sendWithKeyboard(chatID, "✅ Предмет выбран!", tgbotapi.NewRemoveKeyboard(true)); err != nil {
		return err
	}
	return v.b.sendWithKeyboard(chatID, "Выберите уровень сложности:", levelsKeyboard())
}

func (v *quizView) LevelChosen(_ context.Context, ref quiz.Ref, subject string, level quiz.Level) error {
	text := fmt.Sprintf(
		"✅ Предмет: %s\n📊 Уровень сложности: %s\nДанные сохранены. Готово к началу викторины!",
		strings.ToUpper(subject), level.Label(),
	)
	err := v.b.editMessage(ref.ChatID, ref.MessageID, text)
	v.b.answerCallback(ref.CallbackID, "Мы начинаем!")
	if _, aerr := v.b.client.Request(tgbotapi.NewChatAction(ref.ChatID, tgbotapi.ChatTyping)); aerr != nil {
		v.b.logger.Debug("failed to send chat action", "chat_id", ref.ChatID, "error", aerr)
	}
	return err
}

func (v *quizView) StartProgress(_ context.Context, chatID int64) (quiz.Progress, error) {
	sent, err := v.b.client.Send(tgbotapi.NewMessage(chatID, progressText))
	if err != nil {
		return nil, fmt.Errorf("failed to send progress message: %w", err)
	}
	return &progressMessage{b: v.b, chatID: chatID, messageID: sent.MessageID}, nil
}

func (v *quizView) ShowQuestion(_ context.Context, chatID int64, index int, q models.Question) error {
	text := fmt.Sprintf("Вопрос №%d.\n\n %s", index+1, q.Prompt)
	return v.b.sendWithKeyboard(chatID, text, questionKeyboard(index, q))
}

func (v *quizView) ShowVerdict(_ context.Context, ref quiz.Ref, correct bool, q models.Question) error {
	text := "✅ Правильно!"
	if !correct {
		text = fmt.Sprintf("❌ Неправильно!\n\nПравильный ответ: %s\nОбъяснение: %s", q.CorrectText(), q.Explanation)
	}
	return v.b.editMessage(ref.ChatID, ref.MessageID, text)
}

func (v *quizView) OfferNext(_ context.Context, chatID int64) error {
	return v.b.sendWithKeyboard(chatID, "Нажмите 'Следующий вопрос', чтобы продолжить.", nextQuestionKeyboard())
}

func (v *quizView) ShowResult(_ context.Context, chatID int64, correct, total int) error {
	text := fmt.Sprintf("🏁 Викторина завершена!\n\nВаш результат: %d/%d правильных ответов.", correct, total)
	return v.b.sendWithKeyboard(chatID, text, afterQuizKeyboard())
}

func (v *quizView) GenerationFailed(_ context.Context, chatID int64) error {
	return v.b.sendWithKeyboard(chatID, "❌ Не удалось сгенерировать викторину. Попробуйте снова позже.", afterQuizKeyboard())
}

// Notice answers the pressed button, or sends a message when there is none
func (v *quizView) Notice(_ context.Context, ref quiz.Ref, text string) error {
	if ref.CallbackID != "" {
		v.b.answerCallback(ref.CallbackID, text)
		return nil
	}
	return v.b.sendText(ref.ChatID, text)
}

// progressMessage animates the "generating" message with trailing dots
type progressMessage struct {
	b         *Bot
	chatID    int64
	messageID int
}

func (p *progressMessage) Update(_ context.Context, frame int) error {
	text := progressText + strings.Repeat(".", frame%4)
	return p.b.editMessage(p.chatID, p.messageID, text)
}
