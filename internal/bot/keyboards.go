package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply keyboard labels. Incoming messages are matched against them.
const (
	btnStartQuiz = "📚 Начать викторину"
	btnMyStats   = "📈 Моя статистика"
	btnRating    = "🏆 Рейтинг"
	btnHelp      = "❓ Помощь"

	btnUsersStats     = "📊 Статистика пользователей"
	btnSettings       = "⚙️ Настройки"
	btnExport         = "📥 Выгрузка в Excel"
	btnBack           = "🔙 Назад"
	btnManageUsers    = "1. Управление пользователями"
	btnQuizSettings   = "2. Настройки викторины"
	btnManageSubjects = "1. Добавить/Удалить предметы"
	btnAddSubject     = "Добавить предмет"
	btnDeleteSubject  = "Удалить предмет"
	btnImportSubjects = "📄 Импорт предметов"
)

// Callback data
const (
	callbackNextQuestion = "next_qst"
	callbackNextQuiz     = "next_quiz"
	callbackMainMenu     = "main_menu"
	callbackAnswerPrefix = "answer_"
	callbackDeletePrefix = "delete_user_"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates an inline keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// createReplyKeyboard creates a resizable reply keyboard from button labels
func createReplyKeyboard(rows ...[]string) tgbotapi.ReplyKeyboardMarkup {
	var keyboard [][]tgbotapi.KeyboardButton
	for _, row := range rows {
		var keyboardRow []tgbotapi.KeyboardButton
		for _, text := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewKeyboardButton(text))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true
	return markup
}

func startKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return createReplyKeyboard(
		[]string{btnStartQuiz, btnMyStats},
		[]string{btnRating, btnHelp},
	)
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return createReplyKeyboard(
		[]string{btnUsersStats},
		[]string{btnRating},
		[]string{btnHelp},
		[]string{btnSettings},
		[]string{btnExport},
	)
}

func settingsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return createReplyKeyboard(
		[]string{btnManageUsers},
		[]string{btnQuizSettings},
		[]string{btnBack},
	)
}

func quizSettingsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return createReplyKeyboard(
		[]string{btnManageSubjects},
		[]string{btnBack},
	)
}

func subjectsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return createReplyKeyboard(
		[]string{btnAddSubject},
		[]string{btnDeleteSubject},
		[]string{btnImportSubjects},
		[]string{btnBack},
	)
}

// subjectChoiceKeyboard lists catalog subjects, one per row
func subjectChoiceKeyboard(subjects []string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]string, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, []string{strings.ToUpper(s)})
	}
	markup := createReplyKeyboard(rows...)
	markup.InputFieldPlaceholder = "📚 Выберите предмет:"
	return markup
}

func levelsKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]MenuButton, 0, len(quiz.Levels))
	for _, l := range quiz.Levels {
		row = append(row, MenuButton{Text: l.Label(), CallbackData: l.Callback()})
	}
	return createKeyboard([][]MenuButton{row})
}

func nextQuestionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return createKeyboard([][]MenuButton{
		{{Text: "Следующий вопрос", CallbackData: callbackNextQuestion}},
	})
}

func afterQuizKeyboard() tgbotapi.InlineKeyboardMarkup {
	return createKeyboard([][]MenuButton{
		{
			{Text: "Еще викторина", CallbackData: callbackNextQuiz},
			{Text: "Вернуться в главное меню", CallbackData: callbackMainMenu},
		},
	})
}

// questionKeyboard has one button per option, the payload carries the question
// index and the lower-cased option key
func questionKeyboard(index int, q models.Question) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]MenuButton, 0, len(q.Options))
	for _, o := range q.Options {
		rows = append(rows, []MenuButton{{
			Text:         o.Text,
			CallbackData: answerCallback(index, o.Key),
		}})
	}
	return createKeyboard(rows)
}

func answerCallback(index int, key string) string {
	return fmt.Sprintf("%s%d:%s", callbackAnswerPrefix, index, strings.ToLower(key))
}

// parseAnswerCallback splits "answer_<index>:<key>"
func parseAnswerCallback(data string) (int, string, bool) {
	rest, ok := strings.CutPrefix(data, callbackAnswerPrefix)
	if !ok {
		return 0, "", false
	}
	idx, key, ok := strings.Cut(rest, ":")
	if !ok || key == "" {
		return 0, "", false
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return 0, "", false
	}
	return index, key, true
}

func deleteUserKeyboard(chatID int64) tgbotapi.InlineKeyboardMarkup {
	return createKeyboard([][]MenuButton{
		{{Text: "Удалить пользователя", CallbackData: fmt.Sprintf("%s%d", callbackDeletePrefix, chatID)}},
	})
}
