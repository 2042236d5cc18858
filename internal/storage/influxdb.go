package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/internal/dataset"
)

// InfluxDBStorage реализует хранилище датасета в InfluxDB.
// Альтернатива CSV для случаев, когда датасет читают TSDB-инструментами.
type InfluxDBStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string
	log      *zap.Logger
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig, log *zap.Logger) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
		log:      log,
	}, nil
}

// AppendRows записывает строки датасета как точки измерения market_data
func (s *InfluxDBStorage) AppendRows(ctx context.Context, rows []dataset.Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("пустой пакет строк, сохранение не выполнено")
	}

	for _, row := range rows {
		point := influxdb2.NewPoint(
			"market_data",
			map[string]string{
				"symbol":    row.Symbol,
				"timeframe": row.Timeframe,
			},
			rowFields(row),
			row.Datetime,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()

	s.log.Info("Данные записаны в InfluxDB",
		zap.String("bucket", s.bucket),
		zap.Int("rows", len(rows)))

	return nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// rowFields собирает поля точки; отсутствующие значения не записываются
func rowFields(row dataset.Row) map[string]interface{} {
	fields := map[string]interface{}{
		"open":   row.Open,
		"high":   row.High,
		"low":    row.Low,
		"close":  row.Close,
		"volume": row.Volume,
	}

	optional := map[string]*float64{
		"sma_20":          row.SMA20,
		"sma_50":          row.SMA50,
		"sma_200":         row.SMA200,
		"ema_12":          row.EMA12,
		"ema_26":          row.EMA26,
		"rsi_14":          row.RSI14,
		"macd":            row.MACD,
		"macd_signal":     row.MACDSignal,
		"macd_hist":       row.MACDHist,
		"bb_upper":        row.BBUpper,
		"bb_middle":       row.BBMiddle,
		"bb_lower":        row.BBLower,
		"atr_14":          row.ATR14,
		"obv":             row.OBV,
		"best_bid_price":  row.BestBidPrice,
		"best_bid_amount": row.BestBidAmount,
		"best_ask_price":  row.BestAskPrice,
		"best_ask_amount": row.BestAskAmount,
		"spread":          row.Spread,
		"spread_percent":  row.SpreadPercent,
	}

	for name, value := range optional {
		if value != nil {
			fields[name] = *value
		}
	}

	return fields
}
