package dataset

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okonst/cryptoset/pkg/models"
)

// DatetimeLayout — формат колонки datetime в датасете
const DatetimeLayout = "2006-01-02 15:04:05"

// columns — фиксированный порядок колонок датасета. Колонки стакана присутствуют
// всегда; при отсутствии снимка они сериализуются пустым маркером, чтобы файл
// оставался корректной таблицей с постоянным числом колонок.
var columns = []string{
	"timestamp", "datetime", "symbol", "timeframe",
	"open", "high", "low", "close", "volume",
	"sma_20", "sma_50", "sma_200", "ema_12", "ema_26",
	"rsi_14", "macd", "macd_signal", "macd_hist",
	"bb_upper", "bb_middle", "bb_lower", "atr_14", "obv",
	"best_bid_price", "best_bid_amount", "best_ask_price", "best_ask_amount",
	"spread", "spread_percent",
}

// Columns возвращает порядок колонок датасета
func Columns() []string {
	result := make([]string, len(columns))
	copy(result, columns)
	return result
}

// Row представляет одну плоскую строку датасета.
// Нулевые указатели сериализуются пустым маркером, а не нулем.
type Row struct {
	Timestamp int64
	Datetime  time.Time
	Symbol    string
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	SMA20      *float64
	SMA50      *float64
	SMA200     *float64
	EMA12      *float64
	EMA26      *float64
	RSI14      *float64
	MACD       *float64
	MACDSignal *float64
	MACDHist   *float64
	BBUpper    *float64
	BBMiddle   *float64
	BBLower    *float64
	ATR14      *float64
	OBV        *float64

	BestBidPrice  *float64
	BestBidAmount *float64
	BestAskPrice  *float64
	BestAskAmount *float64
	Spread        *float64
	SpreadPercent *float64
}

// Merge объединяет свечу, ее индикаторы и опциональный снимок стакана в одну запись.
// Если индикаторы не переданы, создается пустой набор с ключом свечи.
// Снимок стакана присваивается как есть, без временной привязки к свече.
func Merge(candle models.Candle, indicators *models.IndicatorSet, orderBook *models.OrderBook) models.MarketRecord {
	if indicators == nil {
		indicators = &models.IndicatorSet{
			Symbol:    candle.Symbol,
			Timeframe: candle.Timeframe,
			Timestamp: candle.Timestamp,
			Datetime:  candle.Datetime,
		}
	}

	return models.MarketRecord{
		Candle:     candle,
		Indicators: *indicators,
		OrderBook:  orderBook,
	}
}

// Flatten преобразует запись в плоскую строку датасета. Детерминирована:
// повторное преобразование той же записи дает идентичную строку.
func Flatten(record models.MarketRecord) Row {
	c := record.Candle
	ind := record.Indicators

	row := Row{
		Timestamp: c.Timestamp,
		Datetime:  c.Datetime,
		Symbol:    c.Symbol,
		Timeframe: c.Timeframe,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,

		SMA20:      clone(ind.SMA20),
		SMA50:      clone(ind.SMA50),
		SMA200:     clone(ind.SMA200),
		EMA12:      clone(ind.EMA12),
		EMA26:      clone(ind.EMA26),
		RSI14:      clone(ind.RSI14),
		MACD:       clone(ind.MACD),
		MACDSignal: clone(ind.MACDSignal),
		MACDHist:   clone(ind.MACDHist),
		BBUpper:    clone(ind.BBUpper),
		BBMiddle:   clone(ind.BBMiddle),
		BBLower:    clone(ind.BBLower),
		ATR14:      clone(ind.ATR14),
		OBV:        clone(ind.OBV),
	}

	ob := record.OrderBook
	if ob == nil {
		return row
	}

	if len(ob.Bids) > 0 {
		row.BestBidPrice = ptr(ob.Bids[0].Price)
		row.BestBidAmount = ptr(ob.Bids[0].Amount)
	}
	if len(ob.Asks) > 0 {
		row.BestAskPrice = ptr(ob.Asks[0].Price)
		row.BestAskAmount = ptr(ob.Asks[0].Amount)
	}
	if len(ob.Bids) > 0 && len(ob.Asks) > 0 {
		spread := ob.Asks[0].Price - ob.Bids[0].Price
		row.Spread = ptr(spread)
		// Нулевая цена лучшего бида: процентный спред не определен
		if ob.Bids[0].Price != 0 {
			row.SpreadPercent = ptr(spread / ob.Bids[0].Price * 100)
		}
	}

	return row
}

// Record сериализует строку в значения колонок в порядке Columns().
// Числа с плавающей точкой записываются с фиксированной точностью,
// отсутствующие значения — пустой строкой.
func (r Row) Record(precision int) []string {
	fixed := func(v float64) string {
		return decimal.NewFromFloat(v).StringFixed(int32(precision))
	}
	opt := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fixed(*v)
	}

	return []string{
		strconv.FormatInt(r.Timestamp, 10),
		r.Datetime.UTC().Format(DatetimeLayout),
		r.Symbol,
		r.Timeframe,
		fixed(r.Open),
		fixed(r.High),
		fixed(r.Low),
		fixed(r.Close),
		fixed(r.Volume),
		opt(r.SMA20),
		opt(r.SMA50),
		opt(r.SMA200),
		opt(r.EMA12),
		opt(r.EMA26),
		opt(r.RSI14),
		opt(r.MACD),
		opt(r.MACDSignal),
		opt(r.MACDHist),
		opt(r.BBUpper),
		opt(r.BBMiddle),
		opt(r.BBLower),
		opt(r.ATR14),
		opt(r.OBV),
		opt(r.BestBidPrice),
		opt(r.BestBidAmount),
		opt(r.BestAskPrice),
		opt(r.BestAskAmount),
		opt(r.Spread),
		opt(r.SpreadPercent),
	}
}

// SortRecords упорядочивает записи по символу, таймфрейму и времени
func SortRecords(records []models.MarketRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Candle, records[j].Candle
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timeframe != b.Timeframe {
			return a.Timeframe < b.Timeframe
		}
		return a.Timestamp < b.Timestamp
	})
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func ptr(v float64) *float64 {
	return &v
}
