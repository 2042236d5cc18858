package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/internal/dataset"
)

// Storage интерфейс приемника строк датасета
type Storage interface {
	// AppendRows дописывает пакет строк к датасету. При первом обращении
	// создается заголовок с полным набором колонок.
	AppendRows(ctx context.Context, rows []dataset.Row) error
	Close()
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig, log *zap.Logger) (Storage, error) {
	switch cfg.Type {
	case "csv":
		return NewCSVStorage(cfg, log)
	case "influxdb":
		return NewInfluxDBStorage(cfg, log)
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}
