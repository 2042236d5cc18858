package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Collection CollectionConfig `yaml:"collection"`
	Indicators IndicatorConfig  `yaml:"indicators"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExchangeConfig содержит настройки подключения к бирже
type ExchangeConfig struct {
	APIKey            string  `yaml:"api_key"`
	APISecret         string  `yaml:"api_secret"`
	Testnet           bool    `yaml:"testnet"`
	RequestTimeout    int     `yaml:"request_timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CollectionConfig содержит настройки сбора данных
type CollectionConfig struct {
	Symbols         []string `yaml:"symbols"`
	Timeframes      []string `yaml:"timeframes"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	HistoryDays     int      `yaml:"history_days"`
	CandleLimit     int      `yaml:"candle_limit"`
	OrderBookDepth  int      `yaml:"orderbook_depth"`
}

// IndicatorConfig содержит периоды расчета технических индикаторов.
// Имена колонок датасета фиксированы, периоды настраиваемы.
type IndicatorConfig struct {
	SMAShort   int     `yaml:"sma_short"`
	SMAMedium  int     `yaml:"sma_medium"`
	SMALong    int     `yaml:"sma_long"`
	EMAFast    int     `yaml:"ema_fast"`
	EMASlow    int     `yaml:"ema_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	RSIPeriod  int     `yaml:"rsi_period"`
	BBPeriod   int     `yaml:"bb_period"`
	BBStdDev   float64 `yaml:"bb_std_dev"`
	ATRPeriod  int     `yaml:"atr_period"`
}

// StorageConfig содержит настройки хранения датасета
type StorageConfig struct {
	Type            string `yaml:"type"` // csv или influxdb
	DataDir         string `yaml:"data_dir"`
	DatasetFilename string `yaml:"dataset_filename"`
	FloatPrecision  int    `yaml:"float_precision"`
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Organization    string `yaml:"organization"`
	Bucket          string `yaml:"bucket"`
}

// LoggingConfig содержит настройки логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load загружает конфигурацию из YAML-файла и применяет переменные окружения.
// Ключи API берутся из окружения (.env), если заданы — чтобы не хранить их в файле.
func Load(path string) (*Config, error) {
	// .env необязателен, его отсутствие — не ошибка
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		config.Exchange.APIKey = key
	}
	if secret := os.Getenv("BINANCE_API_SECRET"); secret != "" {
		config.Exchange.APISecret = secret
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if len(c.Collection.Symbols) == 0 {
		c.Collection.Symbols = []string{"BTC/USDT", "ETH/USDT"}
	}
	if len(c.Collection.Timeframes) == 0 {
		c.Collection.Timeframes = []string{"1h", "4h", "1d"}
	}
	if c.Collection.IntervalSeconds == 0 {
		c.Collection.IntervalSeconds = 3600
	}
	if c.Collection.HistoryDays == 0 {
		c.Collection.HistoryDays = 365
	}
	if c.Collection.CandleLimit == 0 {
		c.Collection.CandleLimit = 1000
	}
	if c.Collection.OrderBookDepth == 0 {
		c.Collection.OrderBookDepth = 20
	}
	if c.Exchange.RequestTimeout == 0 {
		c.Exchange.RequestTimeout = 30
	}
	if c.Exchange.RequestsPerSecond == 0 {
		c.Exchange.RequestsPerSecond = 1
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "csv"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.DatasetFilename == "" {
		c.Storage.DatasetFilename = "crypto_dataset.csv"
	}
	if c.Storage.FloatPrecision == 0 {
		c.Storage.FloatPrecision = 8
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.Indicators.applyDefaults()
}

// applyDefaults заполняет стандартные периоды индикаторов
func (c *IndicatorConfig) applyDefaults() {
	if c.SMAShort == 0 {
		c.SMAShort = 20
	}
	if c.SMAMedium == 0 {
		c.SMAMedium = 50
	}
	if c.SMALong == 0 {
		c.SMALong = 200
	}
	if c.EMAFast == 0 {
		c.EMAFast = 12
	}
	if c.EMASlow == 0 {
		c.EMASlow = 26
	}
	if c.MACDSignal == 0 {
		c.MACDSignal = 9
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.BBPeriod == 0 {
		c.BBPeriod = 20
	}
	if c.BBStdDev == 0 {
		c.BBStdDev = 2.0
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = 14
	}
}
