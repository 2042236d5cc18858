package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/internal/dataset"
)

// CSVStorage реализует хранилище датасета в плоском CSV-файле
type CSVStorage struct {
	filepath  string
	precision int
	log       *zap.Logger
}

// NewCSVStorage создает CSV-хранилище и директорию для данных
func NewCSVStorage(cfg config.StorageConfig, log *zap.Logger) (*CSVStorage, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории данных: %w", err)
	}

	return &CSVStorage{
		filepath:  filepath.Join(cfg.DataDir, cfg.DatasetFilename),
		precision: cfg.FloatPrecision,
		log:       log,
	}, nil
}

// AppendRows дописывает строки к датасету. Если файла еще нет, он создается
// с заголовком; существующий файл дополняется без повторения заголовка.
func (s *CSVStorage) AppendRows(ctx context.Context, rows []dataset.Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("пустой пакет строк, сохранение не выполнено")
	}

	_, statErr := os.Stat(s.filepath)
	fileExists := statErr == nil

	file, err := os.OpenFile(s.filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла датасета: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if !fileExists {
		if err := writer.Write(dataset.Columns()); err != nil {
			return fmt.Errorf("ошибка записи заголовка: %w", err)
		}
	}

	for _, row := range rows {
		if err := writer.Write(row.Record(s.precision)); err != nil {
			return fmt.Errorf("ошибка записи строки: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("ошибка сохранения датасета: %w", err)
	}

	s.log.Info("Данные успешно сохранены",
		zap.String("path", s.filepath),
		zap.Int("rows", len(rows)))

	return nil
}

// RowCount возвращает число строк данных в датасете без учета заголовка
func (s *CSVStorage) RowCount() (int, error) {
	file, err := os.Open(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка открытия файла датасета: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("ошибка чтения файла датасета: %w", err)
	}

	if count > 0 {
		count-- // заголовок
	}
	return count, nil
}

// Close для CSV-хранилища ничего не делает: файл не держится открытым
func (s *CSVStorage) Close() {}
