package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/pkg/models"
)

// Engine рассчитывает технические индикаторы по серии свечей.
// Движок не выполняет I/O и работает с одной серией (symbol, timeframe) за вызов.
type Engine struct {
	config config.IndicatorConfig
	log    *zap.Logger
}

// NewEngine создает новый движок расчета индикаторов
func NewEngine(cfg config.IndicatorConfig, log *zap.Logger) *Engine {
	return &Engine{
		config: cfg,
		log:    log,
	}
}

// Compute рассчитывает индикаторы для серии свечей одной пары (symbol, timeframe),
// отсортированной по возрастанию времени. Возвращает по одному IndicatorSet на свечу
// с тем же ключом (symbol, timeframe, timestamp). Индикатор, для которого не хватает
// истории, остается nil — это не ошибка. Невалидная серия (пустая, с перемешанными
// символами или неупорядоченными временными метками) отклоняется сразу.
func (e *Engine) Compute(candles []*models.Candle) ([]*models.IndicatorSet, error) {
	if err := validateSeries(candles); err != nil {
		return nil, err
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)

	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	e.log.Debug("Расчет технических индикаторов",
		zap.String("symbol", candles[0].Symbol),
		zap.String("timeframe", candles[0].Timeframe),
		zap.Int("candles", n))

	sets := make([]*models.IndicatorSet, n)
	for i, c := range candles {
		sets[i] = &models.IndicatorSet{
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Timestamp: c.Timestamp,
			Datetime:  c.Datetime,
		}
	}

	cfg := e.config

	// Простые скользящие средние: значения появляются с индекса period-1
	assign(sets, sma(closes, cfg.SMAShort), func(s *models.IndicatorSet, v *float64) { s.SMA20 = v })
	assign(sets, sma(closes, cfg.SMAMedium), func(s *models.IndicatorSet, v *float64) { s.SMA50 = v })
	assign(sets, sma(closes, cfg.SMALong), func(s *models.IndicatorSet, v *float64) { s.SMA200 = v })

	// Экспоненциальные скользящие средние, посев через SMA первых period значений
	emaFast := ema(closes, cfg.EMAFast)
	emaSlow := ema(closes, cfg.EMASlow)
	assign(sets, emaFast, func(s *models.IndicatorSet, v *float64) { s.EMA12 = v })
	assign(sets, emaSlow, func(s *models.IndicatorSet, v *float64) { s.EMA26 = v })

	// MACD строится из двух EMA, сигнальная линия — EMA от MACD
	macdLine, macdSignal, macdHist := macd(emaFast, emaSlow, cfg.MACDSignal)
	assign(sets, macdLine, func(s *models.IndicatorSet, v *float64) { s.MACD = v })
	assign(sets, macdSignal, func(s *models.IndicatorSet, v *float64) { s.MACDSignal = v })
	assign(sets, macdHist, func(s *models.IndicatorSet, v *float64) { s.MACDHist = v })

	// RSI по Уайлдеру: первое значение на индексе period
	assign(sets, rsi(closes, cfg.RSIPeriod), func(s *models.IndicatorSet, v *float64) { s.RSI14 = v })

	// Полосы Боллинджера: SMA +/- k стандартных отклонений
	bbUpper, bbMiddle, bbLower := bbands(closes, cfg.BBPeriod, cfg.BBStdDev)
	assign(sets, bbUpper, func(s *models.IndicatorSet, v *float64) { s.BBUpper = v })
	assign(sets, bbMiddle, func(s *models.IndicatorSet, v *float64) { s.BBMiddle = v })
	assign(sets, bbLower, func(s *models.IndicatorSet, v *float64) { s.BBLower = v })

	// ATR по Уайлдеру: первое значение на индексе period
	assign(sets, atr(highs, lows, closes, cfg.ATRPeriod), func(s *models.IndicatorSet, v *float64) { s.ATR14 = v })

	// OBV накапливается с первой свечи и присутствует на всем ряде
	assign(sets, obv(closes, volumes), func(s *models.IndicatorSet, v *float64) { s.OBV = v })

	return sets, nil
}

// validateSeries проверяет, что серия непустая, однородная по паре
// и строго упорядочена по времени
func validateSeries(candles []*models.Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("пустая серия свечей")
	}

	symbol := candles[0].Symbol
	timeframe := candles[0].Timeframe

	for i, c := range candles {
		if c.Symbol != symbol || c.Timeframe != timeframe {
			return fmt.Errorf("серия содержит данные разных пар: %s/%s и %s/%s",
				symbol, timeframe, c.Symbol, c.Timeframe)
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return fmt.Errorf("временные метки не возрастают строго: %d после %d на позиции %d",
				c.Timestamp, candles[i-1].Timestamp, i)
		}
	}

	return nil
}

// assign раскладывает рассчитанный ряд по наборам индикаторов
func assign(sets []*models.IndicatorSet, values []*float64, set func(*models.IndicatorSet, *float64)) {
	for i, v := range values {
		set(sets[i], v)
	}
}

// mask превращает плотный ряд talib в ряд опциональных значений:
// все индексы до lookback считаются отсутствующими
func mask(values []float64, lookback int) []*float64 {
	result := make([]*float64, len(values))
	for i := lookback; i < len(values); i++ {
		v := values[i]
		result[i] = &v
	}
	return result
}

// absent возвращает ряд без единого значения
func absent(n int) []*float64 {
	return make([]*float64, n)
}

// sma рассчитывает простую скользящую среднюю
func sma(closes []float64, period int) []*float64 {
	if period < 1 || len(closes) < period {
		return absent(len(closes))
	}
	return mask(talib.Sma(closes, period), period-1)
}

// ema рассчитывает экспоненциальную скользящую среднюю
func ema(closes []float64, period int) []*float64 {
	if period < 1 || len(closes) < period {
		return absent(len(closes))
	}
	return mask(talib.Ema(closes, period), period-1)
}

// rsi рассчитывает индекс относительной силы по Уайлдеру
func rsi(closes []float64, period int) []*float64 {
	if period < 1 || len(closes) < period+1 {
		return absent(len(closes))
	}
	return mask(talib.Rsi(closes, period), period)
}

// bbands рассчитывает полосы Боллинджера
func bbands(closes []float64, period int, stdDev float64) (upper, middle, lower []*float64) {
	if period < 1 || len(closes) < period {
		n := len(closes)
		return absent(n), absent(n), absent(n)
	}
	u, m, l := talib.BBands(closes, period, stdDev, stdDev, 0)
	return mask(u, period-1), mask(m, period-1), mask(l, period-1)
}

// atr рассчитывает средний истинный диапазон по Уайлдеру
func atr(highs, lows, closes []float64, period int) []*float64 {
	if period < 1 || len(closes) < period+1 {
		return absent(len(closes))
	}
	return mask(talib.Atr(highs, lows, closes, period), period)
}

// obv рассчитывает накопительный балансовый объем
func obv(closes, volumes []float64) []*float64 {
	return mask(talib.Obv(closes, volumes), 0)
}

// macd строит линию MACD как разность быстрой и медленной EMA,
// сигнальную линию как EMA от MACD и гистограмму как их разность.
// Линия MACD появляется вместе с медленной EMA, сигнальная — спустя
// еще signalPeriod-1 значений.
func macd(emaFast, emaSlow []*float64, signalPeriod int) (line, signal, hist []*float64) {
	n := len(emaFast)
	line = absent(n)
	signal = absent(n)
	hist = absent(n)

	// Первый индекс, на котором определены обе EMA
	start := -1
	for i := 0; i < n; i++ {
		if emaFast[i] != nil && emaSlow[i] != nil {
			if start < 0 {
				start = i
			}
			v := *emaFast[i] - *emaSlow[i]
			line[i] = &v
		}
	}
	if start < 0 {
		return line, signal, hist
	}

	// Сигнальная линия строится только по определенной части MACD
	macdValues := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		macdValues = append(macdValues, *line[i])
	}
	if signalPeriod < 1 || len(macdValues) < signalPeriod {
		return line, signal, hist
	}

	signalValues := talib.Ema(macdValues, signalPeriod)
	for i := signalPeriod - 1; i < len(signalValues); i++ {
		v := signalValues[i]
		idx := start + i
		signal[idx] = &v
		h := *line[idx] - v
		hist[idx] = &h
	}

	return line, signal, hist
}
