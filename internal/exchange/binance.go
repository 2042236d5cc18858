package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/pkg/models"
)

// Число попыток запроса до признания получения данных неудачным
const maxAttempts = 3

// BinanceClient клиент для получения исторических данных с Binance.
// Ограничение частоты запросов и повторы при ошибках выполняются внутри клиента,
// пайплайн о них не знает.
type BinanceClient struct {
	spot    *binance.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.ExchangeConfig, log *zap.Logger) (*BinanceClient, error) {
	if cfg.Testnet {
		binance.UseTestnet = true
	}

	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)
	spotClient.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}

	return &BinanceClient{
		spot:    spotClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log,
	}, nil
}

// GetKlines получает исторические свечи начиная с момента since (мс)
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]*models.Candle, error) {
	var klines []*binance.Kline

	err := c.withRetry(ctx, func() error {
		var reqErr error
		service := c.spot.NewKlinesService().
			Symbol(normalizeSymbol(symbol)).
			Interval(timeframe).
			Limit(limit)
		if since > 0 {
			service = service.StartTime(since)
		}
		klines, reqErr = service.Do(ctx)
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(k, symbol, timeframe)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора свечи: %w", err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// GetOrderBook получает текущий снимок стакана заявок
func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	var response *binance.DepthResponse

	err := c.withRetry(ctx, func() error {
		var reqErr error
		response, reqErr = c.spot.NewDepthService().
			Symbol(normalizeSymbol(symbol)).
			Limit(depth).
			Do(ctx)
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", err)
	}

	now := time.Now()
	orderBook := &models.OrderBook{
		Symbol:    symbol,
		Timestamp: now.UnixMilli(),
		Datetime:  now,
		Bids:      make([]models.OrderBookLevel, 0, len(response.Bids)),
		Asks:      make([]models.OrderBookLevel, 0, len(response.Asks)),
	}

	for _, bid := range response.Bids {
		level, err := parseLevel(bid.Price, bid.Quantity)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора уровня бида: %w", err)
		}
		orderBook.Bids = append(orderBook.Bids, level)
	}

	for _, ask := range response.Asks {
		level, err := parseLevel(ask.Price, ask.Quantity)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора уровня аска: %w", err)
		}
		orderBook.Asks = append(orderBook.Asks, level)
	}

	return orderBook, nil
}

// withRetry выполняет запрос с ограничением частоты и экспоненциальным
// повтором при ошибках
func (c *BinanceClient) withRetry(ctx context.Context, request func() error) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = request()
		if lastErr == nil {
			return nil
		}

		c.log.Warn("Запрос к бирже не удался",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// normalizeSymbol преобразует символ вида BTC/USDT в биржевой формат BTCUSDT
func normalizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// parseKline преобразует свечу Binance во внутреннюю модель
func parseKline(k *binance.Kline, symbol, timeframe string) (*models.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, err
	}

	return &models.Candle{
		Timestamp: k.OpenTime,
		Datetime:  time.UnixMilli(k.OpenTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Symbol:    symbol,
		Timeframe: timeframe,
	}, nil
}

// parseLevel преобразует строковые цену и объем уровня стакана
func parseLevel(price, amount string) (models.OrderBookLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return models.OrderBookLevel{}, err
	}
	a, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return models.OrderBookLevel{}, err
	}
	return models.OrderBookLevel{Price: p, Amount: a}, nil
}
