package indicator

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/okonst/cryptoset/internal/config"
	"github.com/okonst/cryptoset/pkg/models"
)

const eps = 1e-9

func defaultConfig() config.IndicatorConfig {
	return config.IndicatorConfig{
		SMAShort:   20,
		SMAMedium:  50,
		SMALong:    200,
		EMAFast:    12,
		EMASlow:    26,
		MACDSignal: 9,
		RSIPeriod:  14,
		BBPeriod:   20,
		BBStdDev:   2.0,
		ATRPeriod:  14,
	}
}

// makeSeries строит серию свечей с high=low=open=close для простых проверок
func makeSeries(closes []float64) []*models.Candle {
	candles := make([]*models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = &models.Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
			Symbol:    "BTC/USDT",
			Timeframe: "1h",
		}
	}
	return candles
}

func newTestEngine(cfg config.IndicatorConfig) *Engine {
	return NewEngine(cfg, zap.NewNop())
}

func TestComputeKeysMatchCandles(t *testing.T) {
	candles := makeSeries([]float64{1, 2, 3})
	sets, err := newTestEngine(defaultConfig()).Compute(candles)
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}
	if len(sets) != len(candles) {
		t.Fatalf("Ожидалось %d наборов, получено %d", len(candles), len(sets))
	}
	for i, set := range sets {
		if set.Timestamp != candles[i].Timestamp {
			t.Errorf("Набор %d: временная метка %d, ожидалась %d", i, set.Timestamp, candles[i].Timestamp)
		}
		if set.Symbol != "BTC/USDT" || set.Timeframe != "1h" {
			t.Errorf("Набор %d: ключ %s/%s не совпадает с ключом свечи", i, set.Symbol, set.Timeframe)
		}
	}
}

func TestShortSeriesAllWindowedAbsent(t *testing.T) {
	// Серия короче любого окна: все оконные индикаторы отсутствуют везде
	closes := make([]float64, 5)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	sets, err := newTestEngine(defaultConfig()).Compute(makeSeries(closes))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	for i, set := range sets {
		windowed := map[string]*float64{
			"sma_20":      set.SMA20,
			"sma_50":      set.SMA50,
			"sma_200":     set.SMA200,
			"ema_12":      set.EMA12,
			"ema_26":      set.EMA26,
			"rsi_14":      set.RSI14,
			"macd":        set.MACD,
			"macd_signal": set.MACDSignal,
			"macd_hist":   set.MACDHist,
			"bb_upper":    set.BBUpper,
			"bb_middle":   set.BBMiddle,
			"bb_lower":    set.BBLower,
			"atr_14":      set.ATR14,
		}
		for name, value := range windowed {
			if value != nil {
				t.Errorf("Индекс %d: %s должен отсутствовать на короткой серии, получено %v", i, name, *value)
			}
		}
		// OBV накапливается с первой свечи
		if set.OBV == nil {
			t.Errorf("Индекс %d: OBV должен присутствовать", i)
		}
	}
}

func TestSMAOnLinearSeries(t *testing.T) {
	// Для ряда 1,2,3,... SMA(n) на индексе i равна (i+1) - (n-1)/2
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	sets, err := newTestEngine(defaultConfig()).Compute(makeSeries(closes))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	if sets[18].SMA20 != nil {
		t.Errorf("SMA20 на индексе 18 должна отсутствовать")
	}

	cases := []struct {
		index    int
		field    *float64
		expected float64
		name     string
	}{
		{19, sets[19].SMA20, 10.5, "sma_20[19]"},
		{59, sets[59].SMA20, 50.5, "sma_20[59]"},
		{49, sets[49].SMA50, 25.5, "sma_50[49]"},
		{59, sets[59].SMA50, 35.5, "sma_50[59]"},
	}
	for _, tc := range cases {
		if tc.field == nil {
			t.Errorf("%s должна присутствовать", tc.name)
			continue
		}
		if math.Abs(*tc.field-tc.expected) > eps {
			t.Errorf("%s = %v, ожидалось %v", tc.name, *tc.field, tc.expected)
		}
	}

	// Окно 200 длиннее серии
	if sets[59].SMA200 != nil {
		t.Errorf("SMA200 должна отсутствовать на серии из 60 свечей")
	}
}

func TestEMAAndMACDOnConstantSeries(t *testing.T) {
	// На константном ряде EMA равна константе, MACD и его производные равны нулю
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 5
	}
	sets, err := newTestEngine(defaultConfig()).Compute(makeSeries(closes))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	if sets[10].EMA12 != nil {
		t.Errorf("EMA12 на индексе 10 должна отсутствовать")
	}
	if sets[11].EMA12 == nil || math.Abs(*sets[11].EMA12-5) > eps {
		t.Errorf("EMA12 на индексе 11 должна быть 5, получено %v", sets[11].EMA12)
	}
	if sets[24].EMA26 != nil {
		t.Errorf("EMA26 на индексе 24 должна отсутствовать")
	}
	if sets[25].EMA26 == nil || math.Abs(*sets[25].EMA26-5) > eps {
		t.Errorf("EMA26 на индексе 25 должна быть 5")
	}

	// MACD определен с появлением медленной EMA
	if sets[24].MACD != nil {
		t.Errorf("MACD на индексе 24 должен отсутствовать")
	}
	if sets[25].MACD == nil || math.Abs(*sets[25].MACD) > eps {
		t.Errorf("MACD на индексе 25 должен быть 0")
	}

	// Сигнальная линия — спустя еще 8 значений MACD
	if sets[32].MACDSignal != nil {
		t.Errorf("Сигнальная линия на индексе 32 должна отсутствовать")
	}
	if sets[33].MACDSignal == nil || math.Abs(*sets[33].MACDSignal) > eps {
		t.Errorf("Сигнальная линия на индексе 33 должна быть 0")
	}
	if sets[33].MACDHist == nil || math.Abs(*sets[33].MACDHist) > eps {
		t.Errorf("Гистограмма MACD на индексе 33 должна быть 0")
	}
}

func TestRSIOnBalancedSeries(t *testing.T) {
	// Чередование +1/-1: за первые 14 изменений поровну роста и падения, RSI = 50
	closes := make([]float64, 15)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	sets, err := newTestEngine(defaultConfig()).Compute(makeSeries(closes))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	if sets[13].RSI14 != nil {
		t.Errorf("RSI на индексе 13 должен отсутствовать")
	}
	if sets[14].RSI14 == nil {
		t.Fatalf("RSI на индексе 14 должен присутствовать")
	}
	if math.Abs(*sets[14].RSI14-50) > 1e-6 {
		t.Errorf("RSI на индексе 14 = %v, ожидалось 50", *sets[14].RSI14)
	}
}

func TestBollingerAndATROnConstantSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 10
	}
	sets, err := newTestEngine(defaultConfig()).Compute(makeSeries(closes))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	// Нулевое отклонение: все три полосы совпадают со средней
	if sets[18].BBMiddle != nil {
		t.Errorf("Полосы Боллинджера на индексе 18 должны отсутствовать")
	}
	for _, v := range []*float64{sets[19].BBUpper, sets[19].BBMiddle, sets[19].BBLower} {
		if v == nil || math.Abs(*v-10) > eps {
			t.Errorf("Полоса Боллинджера на индексе 19 должна быть 10, получено %v", v)
		}
	}

	// Неподвижная цена: истинный диапазон нулевой
	if sets[13].ATR14 != nil {
		t.Errorf("ATR на индексе 13 должен отсутствовать")
	}
	if sets[14].ATR14 == nil || math.Abs(*sets[14].ATR14) > eps {
		t.Errorf("ATR на индексе 14 должен быть 0")
	}
}

func TestOBVRunningSum(t *testing.T) {
	candles := makeSeries([]float64{1, 2, 1, 1})
	volumes := []float64{10, 20, 30, 40}
	for i, c := range candles {
		c.Volume = volumes[i]
	}

	sets, err := newTestEngine(defaultConfig()).Compute(candles)
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	expected := []float64{10, 30, 0, 0}
	for i, want := range expected {
		if sets[i].OBV == nil {
			t.Fatalf("OBV на индексе %d должен присутствовать", i)
		}
		if math.Abs(*sets[i].OBV-want) > eps {
			t.Errorf("OBV[%d] = %v, ожидалось %v", i, *sets[i].OBV, want)
		}
	}
}

func TestCustomSMAWindow(t *testing.T) {
	// Настраиваемое окно: SMA с периодом 3 на серии из 3 свечей
	cfg := defaultConfig()
	cfg.SMAShort = 3

	sets, err := newTestEngine(cfg).Compute(makeSeries([]float64{1, 2, 3}))
	if err != nil {
		t.Fatalf("Compute вернул ошибку: %v", err)
	}

	if sets[0].SMA20 != nil || sets[1].SMA20 != nil {
		t.Errorf("SMA с окном 3 должна отсутствовать на первых двух свечах")
	}
	if sets[2].SMA20 == nil || math.Abs(*sets[2].SMA20-2) > eps {
		t.Errorf("SMA с окном 3 на третьей свече должна быть 2, получено %v", sets[2].SMA20)
	}
}

func TestRejectsMalformedSeries(t *testing.T) {
	engine := newTestEngine(defaultConfig())

	if _, err := engine.Compute(nil); err == nil {
		t.Errorf("Пустая серия должна отклоняться")
	}

	unordered := makeSeries([]float64{1, 2, 3})
	unordered[2].Timestamp = unordered[1].Timestamp
	if _, err := engine.Compute(unordered); err == nil {
		t.Errorf("Серия с неупорядоченными метками должна отклоняться")
	}

	mixed := makeSeries([]float64{1, 2, 3})
	mixed[1].Symbol = "ETH/USDT"
	if _, err := engine.Compute(mixed); err == nil {
		t.Errorf("Серия с разными символами должна отклоняться")
	}
}
