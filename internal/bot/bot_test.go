package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/quizbot/internal/config"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/internal/stats"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	userChatID  int64 = 1001
	adminChatID int64 = 42
)

// fakeSender records everything the bot sends
type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	answers []string
	fileURL string
	nextID  int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

// texts returns the text or caption of every sent item
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		case tgbotapi.DocumentConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeSender) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeSender) contains(substr string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func (f *fakeSender) callbackAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

type fakeGenerator struct {
	questions []models.Question
	err       error
}

func (g *fakeGenerator) Generate(context.Context, string, string) ([]models.Question, error) {
	return g.questions, g.err
}

func sampleQuestions() []models.Question {
	qs := make([]models.Question, quiz.QuestionCount)
	for i := range qs {
		qs[i] = models.Question{
			Prompt: fmt.Sprintf("Вопрос %d?", i+1),
			Options: []models.Option{
				{Key: "a", Text: "Первый"},
				{Key: "b", Text: "Второй"},
				{Key: "c", Text: "Третий"},
				{Key: "d", Text: "Четвёртый"},
			},
			CorrectKey:  "a",
			Explanation: "Потому что",
		}
	}
	return qs
}

type testBot struct {
	*Bot
	sender   *fakeSender
	store    *database.Store
	sessions *session.MemoryStore
}

func setupBot(t *testing.T) *testBot {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, "sqlite3", filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db)
	sessions := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &fakeSender{}

	b := newBot(sender, Options{
		Store:            store,
		Sessions:         sessions,
		Generator:        &fakeGenerator{questions: sampleQuestions()},
		Recorder:         stats.NewRecorder(store, logger),
		Admins:           config.AdminSet{adminChatID: {}},
		ProgressInterval: time.Hour,
		Logger:           logger,
	})
	return &testBot{Bot: b, sender: sender, store: store, sessions: sessions}
}

func (tb *testBot) register(t *testing.T, chatID int64) {
	t.Helper()
	err := tb.store.Users.Create(context.Background(), &models.User{ChatID: chatID, Name: "Иван", LastName: "Петров"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID, FirstName: "Иван"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func (tb *testBot) step(t *testing.T, chatID int64) session.Step {
	t.Helper()
	state, err := tb.sessions.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state == nil {
		return session.StepIdle
	}
	return state.Step
}

func TestRegistration(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate(userChatID, "/start"))
	if got := tb.sender.last(); got != "Пожалуйста, введите ваше имя:" {
		t.Fatalf("last message = %q", got)
	}
	if got := tb.step(t, userChatID); got != session.StepRegName {
		t.Fatalf("step = %q, want %q", got, session.StepRegName)
	}

	// menu labels are taken literally while registering
	tb.handleUpdate(ctx, textUpdate(userChatID, "Иван"))
	if got := tb.sender.last(); got != "Введите вашу фамилию." {
		t.Fatalf("last message = %q", got)
	}
	tb.handleUpdate(ctx, textUpdate(userChatID, "Петров"))
	if !tb.sender.contains("Вы успешно зарегистрированы!") {
		t.Fatalf("registration not confirmed: %v", tb.sender.texts())
	}

	user, err := tb.store.Users.GetByChatID(ctx, userChatID)
	if err != nil {
		t.Fatalf("GetByChatID: %v", err)
	}
	if user.Name != "Иван" || user.LastName != "Петров" {
		t.Fatalf("user = %+v", user)
	}
	if got := tb.step(t, userChatID); got != session.StepIdle {
		t.Fatalf("step after registration = %q", got)
	}
}

func TestQuizRequiresRegistration(t *testing.T) {
	tb := setupBot(t)
	tb.handleUpdate(context.Background(), textUpdate(userChatID, btnStartQuiz))
	if got := tb.sender.last(); got != "Сначала зарегистрируйтесь с помощью команды /start." {
		t.Fatalf("last message = %q", got)
	}
	if got := tb.step(t, userChatID); got != session.StepIdle {
		t.Fatalf("step = %q", got)
	}
}

func TestQuizFlow(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.register(t, userChatID)

	tb.handleUpdate(ctx, textUpdate(userChatID, btnStartQuiz))
	if got := tb.sender.last(); got != "Выберите предмет:" {
		t.Fatalf("last message = %q", got)
	}

	tb.handleUpdate(ctx, textUpdate(userChatID, "МАТЕМАТИКА"))
	if got := tb.sender.last(); got != "Выберите уровень сложности:" {
		t.Fatalf("last message = %q", got)
	}

	tb.handleUpdate(ctx, callbackUpdate(userChatID, "level_easy"))
	if !tb.sender.contains("✅ Предмет: МАТЕМАТИКА") {
		t.Fatalf("level not confirmed: %v", tb.sender.texts())
	}
	if got := tb.sender.last(); !strings.HasPrefix(got, "Вопрос №1.") {
		t.Fatalf("last message = %q", got)
	}

	for i := 0; i < quiz.QuestionCount; i++ {
		key := "a"
		if i >= 7 {
			key = "b"
		}
		tb.handleUpdate(ctx, callbackUpdate(userChatID, answerCallback(i, key)))
		if i == quiz.QuestionCount-1 {
			break
		}
		tb.handleUpdate(ctx, callbackUpdate(userChatID, callbackNextQuestion))
		if got := tb.sender.last(); !strings.HasPrefix(got, fmt.Sprintf("Вопрос №%d.", i+2)) {
			t.Fatalf("after question %d last message = %q", i+1, got)
		}
	}

	if got := tb.sender.last(); !strings.Contains(got, "Ваш результат: 7/10") {
		t.Fatalf("last message = %q", got)
	}
	if !tb.sender.contains("❌ Неправильно!\n\nПравильный ответ: Первый") {
		t.Fatalf("wrong answer verdict missing: %v", tb.sender.texts())
	}
	if got := tb.step(t, userChatID); got != session.StepIdle {
		t.Fatalf("session left after quiz: %q", got)
	}

	rating, err := tb.store.Ratings.Get(ctx, userChatID)
	if err != nil || rating == nil {
		t.Fatalf("Get rating: %v %v", rating, err)
	}
	if rating.TotalScore != 7 || rating.Attempts != 1 {
		t.Fatalf("rating = %+v", rating)
	}
	s, err := tb.store.Users.GetStatistics(ctx, userChatID)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if got := s.Attempts(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}

	// buttons of the finished quiz are stale
	tb.handleUpdate(ctx, callbackUpdate(userChatID, answerCallback(0, "a")))
	answers := tb.sender.callbackAnswers()
	if got := answers[len(answers)-1]; got != quiz.StaleNotice {
		t.Fatalf("callback answer = %q, want stale notice", got)
	}

	tb.handleUpdate(ctx, textUpdate(userChatID, btnMyStats))
	if got := tb.sender.last(); got != "Вот твоя статистика 📊" {
		t.Fatalf("last message = %q", got)
	}

	tb.handleUpdate(ctx, textUpdate(userChatID, btnRating))
	if got := tb.sender.last(); !strings.Contains(got, "1. Иван Петров: 7.00") {
		t.Fatalf("rating message = %q", got)
	}
}

func TestDoubleAnswerIsStale(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.register(t, userChatID)

	tb.handleUpdate(ctx, textUpdate(userChatID, "/quiz"))
	tb.handleUpdate(ctx, textUpdate(userChatID, "физика"))
	tb.handleUpdate(ctx, callbackUpdate(userChatID, "level_hard"))
	tb.handleUpdate(ctx, callbackUpdate(userChatID, answerCallback(0, "a")))
	tb.handleUpdate(ctx, callbackUpdate(userChatID, answerCallback(0, "a")))

	state, err := tb.sessions.Get(ctx, userChatID)
	if err != nil || state == nil || state.Quiz == nil {
		t.Fatalf("Get: %v %v", state, err)
	}
	if state.Quiz.CorrectCount != 1 {
		t.Fatalf("correct = %d, want 1", state.Quiz.CorrectCount)
	}
	answers := tb.sender.callbackAnswers()
	if got := answers[len(answers)-1]; got != quiz.StaleNotice {
		t.Fatalf("callback answer = %q", got)
	}
}

func TestGenerationFailure(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.register(t, userChatID)
	tb.quiz = quiz.NewController(tb.sessions, &fakeGenerator{questions: sampleQuestions()[:3]},
		stats.NewRecorder(tb.store, tb.logger), tb.store.Subjects, &quizView{b: tb.Bot}, time.Hour, tb.logger)

	tb.handleUpdate(ctx, textUpdate(userChatID, btnStartQuiz))
	tb.handleUpdate(ctx, textUpdate(userChatID, "история"))
	tb.handleUpdate(ctx, callbackUpdate(userChatID, "level_medium"))

	if got := tb.sender.last(); got != "❌ Не удалось сгенерировать викторину. Попробуйте снова позже." {
		t.Fatalf("last message = %q", got)
	}
	if got := tb.step(t, userChatID); got != session.StepIdle {
		t.Fatalf("step = %q", got)
	}
}

func TestRatingUnavailable(t *testing.T) {
	tb := setupBot(t)
	tb.handleUpdate(context.Background(), textUpdate(userChatID, "/rating"))
	if got := tb.sender.last(); got != "Рейтинг недоступен в данный момент." {
		t.Fatalf("last message = %q", got)
	}
}

func TestFormatRatingEscapesNames(t *testing.T) {
	got := formatRating([]models.RatingEntry{
		{Name: "<b>Анна</b>", LastName: "Смирнова", AvgScore: 9.5},
		{Name: "Олег", AvgScore: 4},
	})
	for _, want := range []string{"1. &lt;b&gt;Анна&lt;/b&gt; Смирнова: 9.50", "2. Олег: 4.00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("rating %q does not contain %q", got, want)
		}
	}
}

func TestNonAdminCannotOpenAdminMenu(t *testing.T) {
	tb := setupBot(t)
	tb.handleUpdate(context.Background(), textUpdate(userChatID, btnSettings))
	if got := tb.sender.last(); got != "У вас нет прав для выполнения этой команды." {
		t.Fatalf("last message = %q", got)
	}
}

func TestAdminCommandsAreCounted(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate(adminChatID, "/start"))
	tb.handleUpdate(ctx, textUpdate(adminChatID, btnSettings))
	tb.handleUpdate(ctx, textUpdate(userChatID, "/help"))

	if got := tb.sender.texts()[0]; got != "Вы вошли как администратор." {
		t.Fatalf("admin start = %q", got)
	}
	counters, err := tb.store.Counters.Get(ctx, adminChatID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if counters.CommandsUsed != 2 {
		t.Fatalf("commands used = %d, want 2", counters.CommandsUsed)
	}
	userCounters, err := tb.store.Counters.Get(ctx, userChatID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if userCounters.CommandsUsed != 0 {
		t.Fatalf("user commands counted: %d", userCounters.CommandsUsed)
	}
}

func TestAdminManagesSubjects(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate(adminChatID, btnAddSubject))
	tb.handleUpdate(ctx, textUpdate(adminChatID, "Химия"))
	if !tb.sender.contains("Предмет «химия» добавлен.") {
		t.Fatalf("subject not added: %v", tb.sender.texts())
	}

	tb.handleUpdate(ctx, textUpdate(adminChatID, btnAddSubject))
	tb.handleUpdate(ctx, textUpdate(adminChatID, "химия"))
	if got := tb.sender.last(); got != "Этот предмет уже существует." {
		t.Fatalf("last message = %q", got)
	}

	tb.handleUpdate(ctx, textUpdate(adminChatID, btnDeleteSubject))
	tb.handleUpdate(ctx, textUpdate(adminChatID, "астрономия"))
	if got := tb.sender.last(); got != "Этот предмет не найден." {
		t.Fatalf("last message = %q", got)
	}
	if got := tb.step(t, adminChatID); got != session.StepDeleteSubject {
		t.Fatalf("step = %q, want %q", got, session.StepDeleteSubject)
	}
	tb.handleUpdate(ctx, textUpdate(adminChatID, "химия"))

	subjects, err := tb.store.Subjects.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, s := range subjects {
		if s == "химия" {
			t.Fatalf("subject was not deleted: %v", subjects)
		}
	}
	if got := tb.step(t, adminChatID); got != session.StepIdle {
		t.Fatalf("step = %q", got)
	}
}

func TestAdminImportsSubjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "предмет\nхимия\nфизика\n")
	}))
	defer srv.Close()

	tb := setupBot(t)
	tb.sender.fileURL = srv.URL
	ctx := context.Background()

	tb.handleUpdate(ctx, textUpdate(adminChatID, btnImportSubjects))
	upload := textUpdate(adminChatID, "")
	upload.Message.Document = &tgbotapi.Document{FileID: "file1", FileName: "subjects.csv", FileSize: 32}
	tb.handleUpdate(ctx, upload)

	if !tb.sender.contains("Добавлено: 1\nПропущено: 1") {
		t.Fatalf("import report missing: %v", tb.sender.texts())
	}
}

func TestAdminDeletesUser(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.register(t, userChatID)

	tb.handleUpdate(ctx, callbackUpdate(userChatID, fmt.Sprintf("%s%d", callbackDeletePrefix, userChatID)))
	if ok, _ := tb.store.Users.IsRegistered(ctx, userChatID); !ok {
		t.Fatal("non-admin deleted a user")
	}

	tb.handleUpdate(ctx, callbackUpdate(adminChatID, fmt.Sprintf("%s%d", callbackDeletePrefix, userChatID)))
	if got := tb.sender.last(); got != fmt.Sprintf("Пользователь с ID %d был удален.", userChatID) {
		t.Fatalf("last message = %q", got)
	}
	if ok, _ := tb.store.Users.IsRegistered(ctx, userChatID); ok {
		t.Fatal("user still registered")
	}
}

func TestParseAnswerCallback(t *testing.T) {
	tests := []struct {
		data  string
		index int
		key   string
		ok    bool
	}{
		{"answer_0:a", 0, "a", true},
		{"answer_9:d", 9, "d", true},
		{"answer_x:a", 0, "", false},
		{"answer_3", 0, "", false},
		{"answer_3:", 0, "", false},
		{"answer_3x:a", 0, "", false},
		{"next_qst", 0, "", false},
	}
	for _, tt := range tests {
		index, key, ok := parseAnswerCallback(tt.data)
		if index != tt.index || key != tt.key || ok != tt.ok {
			t.Errorf("parseAnswerCallback(%q) = %d, %q, %v", tt.data, index, key, ok)
		}
	}
	if got := answerCallback(2, "C"); got != "answer_2:c" {
		t.Errorf("answerCallback = %q", got)
	}
}

func TestAdminUsersStatsContinuesPastEmptyUsers(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.register(t, userChatID)
	if err := tb.store.Users.Create(ctx, &models.User{ChatID: 2002, Name: "Анна", LastName: "Смирнова"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := models.Statistics{}
	s.Add("биология", time.Now(), 8)
	if err := tb.store.SaveStatistics(ctx, 2002, s); err != nil {
		t.Fatalf("SaveStatistics: %v", err)
	}

	tb.handleUpdate(ctx, textUpdate(adminChatID, btnUsersStats))

	if !tb.sender.contains(fmt.Sprintf("У пользователя Иван Петров (ID: %d) нет статистики 📭", userChatID)) {
		t.Fatalf("empty user notice missing: %v", tb.sender.texts())
	}
	if !tb.sender.contains("Статистика пользователя Анна Смирнова (ID: 2002) 📊") {
		t.Fatalf("chart missing: %v", tb.sender.texts())
	}
}
