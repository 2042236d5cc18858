package models

import (
	"time"
)

// Candle представляет одну OHLCV-свечу
type Candle struct {
	Timestamp int64 // миллисекунды Unix-эпохи, время открытия свечи
	Datetime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Symbol    string
	Timeframe string
}

// OrderBookLevel представляет уровень стакана
type OrderBookLevel struct {
	Price  float64
	Amount float64
}

// OrderBook представляет снимок стакана заявок
type OrderBook struct {
	Timestamp int64
	Datetime  time.Time
	Symbol    string
	Bids      []OrderBookLevel // заявки на покупку, по убыванию цены
	Asks      []OrderBookLevel // заявки на продажу, по возрастанию цены
}

// IndicatorSet представляет рассчитанные технические индикаторы для одной свечи.
// Нулевой указатель означает отсутствие значения (недостаточно истории),
// а не нулевое значение индикатора.
type IndicatorSet struct {
	Symbol    string
	Timeframe string
	Timestamp int64
	Datetime  time.Time

	// Трендовые индикаторы
	SMA20  *float64
	SMA50  *float64
	SMA200 *float64
	EMA12  *float64
	EMA26  *float64

	// Осцилляторы
	RSI14      *float64
	MACD       *float64
	MACDSignal *float64
	MACDHist   *float64

	// Волатильность
	BBUpper  *float64
	BBMiddle *float64
	BBLower  *float64
	ATR14    *float64

	// Объемные индикаторы
	OBV *float64
}

// MarketRecord объединяет свечу, индикаторы и опциональный снимок стакана
type MarketRecord struct {
	Candle     Candle
	Indicators IndicatorSet
	OrderBook  *OrderBook
}
