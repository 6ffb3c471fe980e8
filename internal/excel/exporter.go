package excel

import (
	"bytes"
	"fmt"

	"github.com/example/quizbot/internal/stats"
	"github.com/example/quizbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetUsers      = "Пользователи"
	SheetRating     = "Рейтинг"
	SheetStatistics = "Статистика"
)

// Report is the data written to the admin export workbook
type Report struct {
	Users    []models.User
	Ratings  []models.Rating
	Counters []models.AdminStats
	Year     int // year the flattened statistics are dated in
}

// Export builds a workbook with users, rating and daily statistics
func Export(report Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetUsers)
	f.NewSheet(SheetRating)
	f.NewSheet(SheetStatistics)

	counters := make(map[int64]models.AdminStats, len(report.Counters))
	for _, c := range report.Counters {
		counters[c.ChatID] = c
	}

	userRows := [][]interface{}{{"chat_id", "Имя", "Фамилия", "Зарегистрирован", "Команд", "Викторин", "Сумма баллов"}}
	for _, u := range report.Users {
		c := counters[u.ChatID]
		userRows = append(userRows, []interface{}{
			u.ChatID, u.Name, u.LastName, u.CreatedAt.Format("2006-01-02 15:04"),
			c.CommandsUsed, c.QuizzesTaken, c.TotalScore,
		})
	}
	if err := writeRows(f, SheetUsers, userRows); err != nil {
		return nil, err
	}

	ratingRows := [][]interface{}{{"chat_id", "Сумма баллов", "Попыток", "Средний балл"}}
	for _, r := range report.Ratings {
		ratingRows = append(ratingRows, []interface{}{r.ChatID, r.TotalScore, r.Attempts, r.AvgScore})
	}
	if err := writeRows(f, SheetRating, ratingRows); err != nil {
		return nil, err
	}

	statRows := [][]interface{}{{"chat_id", "Предмет", "Дата", "Средний балл"}}
	for _, u := range report.Users {
		s, err := models.ParseStatistics(u.Statistics)
		if err != nil {
			statRows = append(statRows, []interface{}{u.ChatID, "ошибка статистики", "", ""})
			continue
		}
		for _, row := range stats.Flatten(s, report.Year) {
			statRows = append(statRows, []interface{}{u.ChatID, row.Subject, row.Date.Format("2006-01-02"), row.Value})
		}
	}
	if err := writeRows(f, SheetStatistics, statRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
