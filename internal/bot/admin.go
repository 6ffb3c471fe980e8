package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/quizbot/internal/charts"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/excel"
	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/internal/stats"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxUploadSize = 5 << 20

// handleAdminStart shows the admin menu
func (b *Bot) handleAdminStart(ctx context.Context, chatID int64) error {
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
	}
	return b.showStartButtons(chatID, true)
}

// handleAdminMenu handles the admin reply keyboard
func (b *Bot) handleAdminMenu(ctx context.Context, chatID int64, text string) error {
	switch text {
	case btnUsersStats:
		return b.handleUsersStats(ctx, chatID)
	case btnSettings:
		return b.sendWithKeyboard(chatID, "⚙️ Настройки:", settingsKeyboard())
	case btnExport:
		return b.handleExport(ctx, chatID)
	case btnBack:
		return b.handleAdminStart(ctx, chatID)
	case btnManageUsers:
		return b.handleManageUsers(ctx, chatID)
	case btnQuizSettings:
		return b.sendWithKeyboard(chatID, "Настройки викторины:", quizSettingsKeyboard())
	case btnManageSubjects:
		return b.handleListSubjects(ctx, chatID)
	case btnAddSubject:
		return b.promptAdminInput(ctx, chatID, session.StepAddSubject, "Введите название нового предмета:")
	case btnDeleteSubject:
		return b.promptAdminInput(ctx, chatID, session.StepDeleteSubject, "Введите название предмета для удаления:")
	case btnImportSubjects:
		return b.promptAdminInput(ctx, chatID, session.StepImportSubjects,
			"Отправьте файл Excel (.xlsx) или CSV. Названия предметов должны быть в первом столбце.")
	}
	return nil
}

func (b *Bot) promptAdminInput(ctx context.Context, chatID int64, step session.Step, prompt string) error {
	if err := b.sessions.Put(ctx, chatID, &session.State{Step: step}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return b.sendWithKeyboard(chatID, prompt, createReplyKeyboard([]string{btnBack}))
}

// handleUsersStats sends one chart per user with statistics
func (b *Bot) handleUsersStats(ctx context.Context, chatID int64) error {
	users, err := b.store.Users.GetAll(ctx)
	if err != nil {
		b.logger.Error("failed to list users", "error", err)
		return b.sendText(chatID, "Не удалось получить список пользователей.")
	}

	if len(users) == 0 {
		return b.sendText(chatID, "Нет зарегистрированных пользователей.")
	}

	year := charts.CurrentYear()
	for _, u := range users {
		s, err := models.ParseStatistics(u.Statistics)
		if err != nil {
			b.logger.Warn("malformed statistics", "chat_id", u.ChatID, "error", err)
			b.notify(chatID, fmt.Sprintf("Ошибка при обработке статистики пользователя %s (ID: %d) ⚠️", u.FullName(), u.ChatID))
			continue
		}
		png, err := charts.Render(charts.Title(u.FullName(), year), stats.Flatten(s, year))
		if errors.Is(err, charts.ErrNoData) {
			b.notify(chatID, fmt.Sprintf("У пользователя %s (ID: %d) нет статистики 📭", u.FullName(), u.ChatID))
			continue
		}
		if err != nil {
			b.logger.Error("failed to render statistics", "chat_id", u.ChatID, "error", err)
			continue
		}
		caption := fmt.Sprintf("Статистика пользователя %s %s (ID: %d) 📊", u.Name, u.LastName, u.ChatID)
		if err := b.sendChart(chatID, fmt.Sprintf("stats_%d.png", u.ChatID), png, caption); err != nil {
			b.logger.Error("failed to send chart", "chat_id", u.ChatID, "error", err)
		}
	}
	return nil
}

// notify sends text and logs a failure instead of returning it
func (b *Bot) notify(chatID int64, text string) {
	if err := b.sendText(chatID, text); err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

// handleManageUsers lists users with a delete button each
func (b *Bot) handleManageUsers(ctx context.Context, chatID int64) error {
	users, err := b.store.Users.GetAll(ctx)
	if err != nil {
		b.logger.Error("failed to list users", "error", err)
		return b.sendText(chatID, "Не удалось получить список пользователей.")
	}
	if len(users) == 0 {
		return b.sendWithKeyboard(chatID, "Нет зарегистрированных пользователей.", settingsKeyboard())
	}

	for _, u := range users {
		text := fmt.Sprintf("%s (ID: %d)", u.FullName(), u.ChatID)
		if err := b.sendWithKeyboard(chatID, text, deleteUserKeyboard(u.ChatID)); err != nil {
			return err
		}
	}
	return nil
}

// handleDeleteUser removes a user and their statistics
func (b *Bot) handleDeleteUser(ctx context.Context, ref quiz.Ref, rawID string) error {
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		b.answerCallback(ref.CallbackID, "Некорректный идентификатор пользователя.")
		return nil
	}

	err = b.store.Users.Delete(ctx, userID)
	if errors.Is(err, database.ErrUserNotFound) {
		b.answerCallback(ref.CallbackID, "Пользователь не найден.")
		return nil
	}
	if err != nil {
		b.answerCallback(ref.CallbackID, "")
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	if err := b.sessions.Delete(ctx, userID); err != nil {
		b.logger.Error("failed to clear session of deleted user", "chat_id", userID, "error", err)
	}

	b.logger.Info("user deleted", "chat_id", userID, "admin", ref.ChatID)
	b.answerCallback(ref.CallbackID, "")
	return b.editMessage(ref.ChatID, ref.MessageID, fmt.Sprintf("Пользователь с ID %d был удален.", userID))
}

// handleListSubjects shows the catalog and the subject management keyboard
func (b *Bot) handleListSubjects(ctx context.Context, chatID int64) error {
	subjects, err := b.store.Subjects.List(ctx)
	if err != nil {
		b.logger.Error("failed to list subjects", "error", err)
		return b.sendText(chatID, "Не удалось получить список предметов.")
	}

	var sb strings.Builder
	sb.WriteString("Текущие предметы:\n")
	if len(subjects) == 0 {
		sb.WriteString("(пусто)\n")
	}
	for i, s := range subjects {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	return b.sendWithKeyboard(chatID, sb.String(), subjectsKeyboard())
}

// handleAdminInput handles free text and files of admin dialogs
func (b *Bot) handleAdminInput(ctx context.Context, message *tgbotapi.Message, state *session.State) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case session.StepAddSubject:
		if text == "" {
			return b.sendText(chatID, "Введите название нового предмета:")
		}
		err := b.store.Subjects.Add(ctx, text)
		if errors.Is(err, database.ErrSubjectExists) {
			return b.sendText(chatID, "Этот предмет уже существует.")
		}
		if err != nil {
			b.logger.Error("failed to add subject", "subject", text, "error", err)
			return b.sendText(chatID, "Не удалось добавить предмет.")
		}
		b.clearSession(ctx, chatID)
		if err := b.sendText(chatID, fmt.Sprintf("Предмет «%s» добавлен.", strings.ToLower(text))); err != nil {
			return err
		}
		return b.handleListSubjects(ctx, chatID)

	case session.StepDeleteSubject:
		if text == "" {
			return b.sendText(chatID, "Введите название предмета для удаления:")
		}
		err := b.store.Subjects.Delete(ctx, text)
		if errors.Is(err, database.ErrSubjectNotFound) {
			return b.sendText(chatID, "Этот предмет не найден.")
		}
		if err != nil {
			b.logger.Error("failed to delete subject", "subject", text, "error", err)
			return b.sendText(chatID, "Не удалось удалить предмет.")
		}
		b.clearSession(ctx, chatID)
		if err := b.sendText(chatID, fmt.Sprintf("Предмет «%s» удалён.", strings.ToLower(text))); err != nil {
			return err
		}
		return b.handleListSubjects(ctx, chatID)

	case session.StepImportSubjects:
		if message.Document == nil {
			return b.sendText(chatID, "Пожалуйста, отправьте файл .xlsx или .csv.")
		}
		return b.handleImportSubjects(ctx, chatID, message.Document)
	}
	return nil
}

// handleImportSubjects downloads an uploaded file and adds its subjects
func (b *Bot) handleImportSubjects(ctx context.Context, chatID int64, doc *tgbotapi.Document) error {
	if doc.FileSize > maxUploadSize {
		return b.sendText(chatID, "Файл слишком большой.")
	}

	fileURL, err := b.client.GetFileDirectURL(doc.FileID)
	if err != nil {
		return fmt.Errorf("failed to resolve file %s: %w", doc.FileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Error("failed to download file", "chat_id", chatID, "error", err)
		return b.sendText(chatID, "Не удалось загрузить файл.")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.logger.Error("unexpected download status", "chat_id", chatID, "status", resp.StatusCode)
		return b.sendText(chatID, "Не удалось загрузить файл.")
	}

	result, err := excel.ImportSubjects(ctx, resp.Body, doc.FileName, excel.DefaultImportConfig(), b.store.Subjects)
	if err != nil {
		b.logger.Error("failed to import subjects", "chat_id", chatID, "file", doc.FileName, "error", err)
		return b.sendText(chatID, fmt.Sprintf("Ошибка импорта: %v", err))
	}
	b.clearSession(ctx, chatID)

	report := fmt.Sprintf("Импорт завершён.\nОбработано: %d\nДобавлено: %d\nПропущено: %d",
		result.TotalProcessed, result.Created, result.Skipped)
	if len(result.Errors) > 0 {
		report += "\nОшибки:\n" + strings.Join(result.Errors, "\n")
	}
	if err := b.sendText(chatID, report); err != nil {
		return err
	}
	return b.handleListSubjects(ctx, chatID)
}

// handleExport sends a workbook with users, rating and statistics
func (b *Bot) handleExport(ctx context.Context, chatID int64) error {
	users, err := b.store.Users.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users for export: %w", err)
	}
	ratings, err := b.store.Ratings.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rating for export: %w", err)
	}
	counters, err := b.store.Counters.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load counters for export: %w", err)
	}

	buf, err := excel.Export(excel.Report{
		Users:    users,
		Ratings:  ratings,
		Counters: counters,
		Year:     charts.CurrentYear(),
	})
	if err != nil {
		b.logger.Error("failed to build export", "error", err)
		return b.sendText(chatID, "Не удалось сформировать отчёт.")
	}

	name := fmt.Sprintf("quizbot_%s.xlsx", b.now().Format("2006-01-02"))
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	doc.Caption = "📥 Выгрузка данных"
	return b.sendMessage(doc)
}

func (b *Bot) clearSession(ctx context.Context, chatID int64) {
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
	}
}
