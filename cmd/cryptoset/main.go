package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/collector"
	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/internal/exchange"
	"github.com/okonst/cryptoset/internal/indicator"
	"github.com/okonst/cryptoset/internal/storage"
	"github.com/okonst/cryptoset/pkg/logger"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Init("info")
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info")
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	logger.Init(cfg.Logging.Level)
	defer logger.GetLogger().Sync()
	log := logger.GetLogger()

	logger.Info("Загружена конфигурация",
		zap.String("path", *configPath),
		zap.Strings("symbols", cfg.Collection.Symbols),
		zap.Strings("timeframes", cfg.Collection.Timeframes))

	// Создаем контекст с отменой по сигналам завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Получен сигнал завершения")
		cancel()
	}()

	// Инициализируем хранилище
	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Exchange, log)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// Движок индикаторов и сборщик данных
	engine := indicator.NewEngine(cfg.Indicators, log)
	dataCollector := collector.NewCollector(cfg.Collection, client, engine, store, log)

	// Запускаем периодический сбор в основном потоке (блокирующий вызов)
	dataCollector.Run(ctx)
}
