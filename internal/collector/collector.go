package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/internal/dataset"
	"github.com/okonst/cryptoset/internal/indicator"
	"github.com/okonst/cryptoset/internal/storage"
	"github.com/okonst/cryptoset/pkg/models"
)

// ExchangeClient интерфейс биржевого клиента, используемого сборщиком
type ExchangeClient interface {
	GetKlines(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]*models.Candle, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)
}

// Collector выполняет цикл сбора данных: свечи -> индикаторы -> записи -> датасет
type Collector struct {
	config  config.CollectionConfig
	client  ExchangeClient
	engine  *indicator.Engine
	storage storage.Storage
	log     *zap.Logger
}

// NewCollector создает новый сборщик данных
func NewCollector(cfg config.CollectionConfig, client ExchangeClient, engine *indicator.Engine, store storage.Storage, log *zap.Logger) *Collector {
	return &Collector{
		config:  cfg,
		client:  client,
		engine:  engine,
		storage: store,
		log:     log,
	}
}

// Collect выполняет один проход сбора: для каждой пары (символ, таймфрейм)
// получает свечи, рассчитывает индикаторы и накапливает записи; после всех
// таймфреймов символа прикрепляет снимок стакана к самой свежей записи каждого
// таймфрейма; в конце сортирует записи и отдает их хранилищу одним пакетом.
// Ошибка получения данных по одной паре не прерывает проход.
func (c *Collector) Collect(ctx context.Context) error {
	runID := uuid.NewString()
	started := time.Now()
	since := started.AddDate(0, 0, -c.config.HistoryDays).UnixMilli()

	c.log.Info("Начало сбора данных",
		zap.String("run_id", runID),
		zap.Int("symbols", len(c.config.Symbols)),
		zap.Int("timeframes", len(c.config.Timeframes)))

	var allRecords []models.MarketRecord
	skippedPairs := 0

	for _, symbol := range c.config.Symbols {
		for _, timeframe := range c.config.Timeframes {
			records, err := c.collectPair(ctx, symbol, timeframe, since)
			if err != nil {
				c.log.Warn("Пара пропущена",
					zap.String("run_id", runID),
					zap.String("symbol", symbol),
					zap.String("timeframe", timeframe),
					zap.Error(err))
				skippedPairs++
				continue
			}
			allRecords = append(allRecords, records...)
		}

		// Снимок стакана прикрепляется к последней по времени записи
		// каждого таймфрейма этого символа
		orderBook, err := c.client.GetOrderBook(ctx, symbol, c.config.OrderBookDepth)
		if err != nil {
			c.log.Warn("Не удалось получить стакан",
				zap.String("run_id", runID),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		attachOrderBook(allRecords, symbol, c.config.Timeframes, orderBook)
	}

	if len(allRecords) == 0 {
		return fmt.Errorf("нет данных для сохранения")
	}

	dataset.SortRecords(allRecords)

	rows := make([]dataset.Row, len(allRecords))
	for i, record := range allRecords {
		rows[i] = dataset.Flatten(record)
	}

	if err := c.storage.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("ошибка сохранения датасета: %w", err)
	}

	c.log.Info("Сбор данных завершен",
		zap.String("run_id", runID),
		zap.Int("records", len(rows)),
		zap.Int("skipped_pairs", skippedPairs),
		zap.Duration("elapsed", time.Since(started)))

	return nil
}

// collectPair получает свечи одной пары и объединяет их с индикаторами
func (c *Collector) collectPair(ctx context.Context, symbol, timeframe string, since int64) ([]models.MarketRecord, error) {
	c.log.Debug("Получение данных",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe))

	candles, err := c.client.GetKlines(ctx, symbol, timeframe, since, c.config.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("биржа не вернула свечей")
	}

	sets, err := c.engine.Compute(candles)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета индикаторов: %w", err)
	}

	// Поиск набора индикаторов по точному совпадению временной метки
	byTimestamp := make(map[int64]*models.IndicatorSet, len(sets))
	for _, set := range sets {
		byTimestamp[set.Timestamp] = set
	}

	records := make([]models.MarketRecord, 0, len(candles))
	for _, candle := range candles {
		records = append(records, dataset.Merge(*candle, byTimestamp[candle.Timestamp], nil))
	}

	return records, nil
}

// attachOrderBook прикрепляет снимок стакана к записи с максимальной временной
// меткой для каждого таймфрейма символа — не более одной записи на таймфрейм
func attachOrderBook(records []models.MarketRecord, symbol string, timeframes []string, orderBook *models.OrderBook) {
	if orderBook == nil {
		return
	}

	for _, timeframe := range timeframes {
		latest := -1
		for i := range records {
			if records[i].Candle.Symbol != symbol || records[i].Candle.Timeframe != timeframe {
				continue
			}
			if latest < 0 || records[i].Candle.Timestamp > records[latest].Candle.Timestamp {
				latest = i
			}
		}
		if latest >= 0 {
			records[latest].OrderBook = orderBook
		}
	}
}

// Run запускает периодический сбор данных: первый проход сразу,
// затем по расписанию до отмены контекста
func (c *Collector) Run(ctx context.Context) {
	if err := c.Collect(ctx); err != nil {
		c.log.Error("Ошибка при сборе данных", zap.Error(err))
	}

	interval := time.Duration(c.config.IntervalSeconds) * time.Second
	c.log.Info("Настроен периодический сбор данных", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Collect(ctx); err != nil {
				c.log.Error("Ошибка при сборе данных", zap.Error(err))
			}
		case <-ctx.Done():
			c.log.Info("Сбор данных остановлен")
			return
		}
	}
}
