package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"

	apiKeyENV     = "OKX_API_KEY"
	secretKeyENV  = "OKX_SECRET_KEY"
	passphraseENV = "OKX_PASSPHRASE"
)

// Credentials — один набор ключей OKX.
type Credentials struct {
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	Passphrase string `yaml:"passphrase"`
}

func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.SecretKey == "" && c.Passphrase == ""
}

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB     string `yaml:"db_dsn"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
	LogLevel string `yaml:"log_level"`

	// Ключи раздельно: (dev|user) x (demo|live). Выбор — DemoMode + UseDevKeys.
	DevDemo    Credentials `yaml:"dev_demo_credentials"`
	DevLive    Credentials `yaml:"dev_live_credentials"`
	UserDemo   Credentials `yaml:"user_demo_credentials"`
	UserLive   Credentials `yaml:"user_live_credentials"`
	UseDevKeys bool        `yaml:"use_dev_keys"`

	DemoMode bool `yaml:"demo_mode"`

	// Переопределение базового URL REST (тесты). Пусто — боевой хост.
	RestBaseURL string `yaml:"rest_base_url"`

	Symbol       string  `yaml:"symbol"`
	Direction    string  `yaml:"direction"` // long | short | both
	Leverage     float64 `yaml:"leverage"`
	MarginMode   string  `yaml:"margin_mode"`   // cross | isolated
	PositionMode string  `yaml:"position_mode"` // long_short_mode | net_mode

	// Капитал
	MaxAllowedUsed float64 `yaml:"max_allowed_used"` // USD маржи, зажимается по equity
	RateDivisor    float64 `yaml:"rate_divisor"`
	TradeFeePct    float64 `yaml:"trade_fee_pct"` // 0.08 => 0.08%
	MinOrderAmount float64 `yaml:"min_order_amount"`

	// Входы
	LoopTime         float64 `yaml:"loop_time"` // секунды
	EntryPriceOffset float64 `yaml:"entry_price_offset"`
	BatchOffset      float64 `yaml:"batch_offset"`
	OrdersPerBatch   int     `yaml:"orders_per_batch"`

	// Выходы (офсеты в абсолютных ценовых единицах)
	TpOffset        float64 `yaml:"tp_offset"`
	SlOffset        float64 `yaml:"sl_offset"`
	TpTriggerPxType string  `yaml:"tp_trigger_px_type"` // last | mark | index

	// Отмена неисполненных входов
	CancelUnfilledSeconds float64 `yaml:"cancel_unfilled_seconds"`
	CancelTpPassed        bool    `yaml:"cancel_tp_passed"`

	// Авто-выход (порядок проверки фиксированный, см. accountant)
	ManualProfitTarget  float64 `yaml:"manual_profit_target"` // USD, 0 = выкл
	PnlAutoCal          bool    `yaml:"pnl_auto_cal"`
	PnlAutoCalTimes     float64 `yaml:"pnl_auto_cal_times"`
	PnlAutoCalLoss      bool    `yaml:"pnl_auto_cal_loss"`
	PnlAutoCalLossTimes float64 `yaml:"pnl_auto_cal_loss_times"`
	SizeProfit          bool    `yaml:"size_profit"`
	SizeProfitTimes     float64 `yaml:"size_profit_times"`
	SizeLoss            bool    `yaml:"size_loss"`
	SizeLossTimes       float64 `yaml:"size_loss_times"`
	AboveZero           bool    `yaml:"above_zero"` // выход в безубыток после усреднений

	// Авто-добор (усреднение)
	AutoAdd          bool    `yaml:"auto_add"`
	AddFirstGapPct   float64 `yaml:"add_first_gap_pct"`
	AddNextGapPct    float64 `yaml:"add_next_gap_pct"`
	AddFirstSizePct  float64 `yaml:"add_first_size_pct"`
	AddNextSizePct   float64 `yaml:"add_next_size_pct"`
	MaxAddCount      int     `yaml:"max_add_count"`
	AddBudget        float64 `yaml:"add_budget"` // отдельный бюджет доборов, USD
	AddPosExitTimes  float64 `yaml:"add_pos_exit_times"`
	AddPosExitActive bool    `yaml:"add_pos_exit"`

	// Стоп-линии входа
	LongSafetyLinePrice  float64 `yaml:"long_safety_line_price"`
	ShortSafetyLinePrice float64 `yaml:"short_safety_line_price"`

	// Свечной фильтр входа
	CandleCondition string  `yaml:"candlestick_condition"` // none | open_close | high_low | high_close
	CandleTimeframe string  `yaml:"candlestick_timeframe"` // 1m, 5m, ...
	CandleMinRange  float64 `yaml:"candlestick_min_range"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Defaults()
	err = decoder.Decode(config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	// Env-ключи перекрывают активный набор из yaml.
	if k := os.Getenv(apiKeyENV); k != "" {
		cr := Credentials{
			APIKey:     k,
			SecretKey:  getenvDefault(secretKeyENV, ""),
			Passphrase: getenvDefault(passphraseENV, ""),
		}
		config.setActiveCredentials(cr)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Defaults — дефолты в том же объёме, что и у живого конфига движка.
func Defaults() *Config {
	c := &Config{}
	c.LogLevel = "info"
	c.DemoMode = true
	c.Symbol = "ETH-USDT-SWAP"
	c.Direction = "both"
	c.Leverage = 10
	c.MarginMode = "cross"
	c.PositionMode = "long_short_mode"

	c.MaxAllowedUsed = floatFromEnv("MAX_ALLOWED_USED", 1000)
	c.RateDivisor = 2
	c.TradeFeePct = 0.08
	c.MinOrderAmount = 5

	c.LoopTime = floatFromEnv("LOOP_TIME", 10)
	c.EntryPriceOffset = 2
	c.BatchOffset = 5
	c.OrdersPerBatch = 1

	c.TpOffset = 10
	c.SlOffset = 20
	c.TpTriggerPxType = "last"

	c.CancelUnfilledSeconds = 90
	c.CancelTpPassed = false

	c.PnlAutoCalTimes = 4
	c.PnlAutoCalLossTimes = 4
	c.SizeProfitTimes = 4
	c.SizeLossTimes = 4

	c.AddFirstGapPct = 1.0
	c.AddNextGapPct = 2.0
	c.AddFirstSizePct = 50
	c.AddNextSizePct = 100
	c.MaxAddCount = 3
	c.AddPosExitTimes = 2

	c.CandleCondition = "none"
	c.CandleTimeframe = "1m"

	return c
}

// ActiveCredentials — набор ключей под текущий режим.
func (c *Config) ActiveCredentials() Credentials {
	if c.UseDevKeys {
		if c.DemoMode {
			return c.DevDemo
		}
		return c.DevLive
	}
	if c.DemoMode {
		return c.UserDemo
	}
	return c.UserLive
}

func (c *Config) setActiveCredentials(cr Credentials) {
	switch {
	case c.UseDevKeys && c.DemoMode:
		c.DevDemo = cr
	case c.UseDevKeys:
		c.DevLive = cr
	case c.DemoMode:
		c.UserDemo = cr
	default:
		c.UserLive = cr
	}
}

func (c *Config) Validate() error {
	switch c.Direction {
	case "long", "short", "both":
	default:
		return fmt.Errorf("direction must be long, short or both, got %q", c.Direction)
	}
	switch c.MarginMode {
	case "cross", "isolated":
	default:
		return fmt.Errorf("margin_mode must be cross or isolated, got %q", c.MarginMode)
	}
	switch c.PositionMode {
	case "long_short_mode", "net_mode":
	default:
		return fmt.Errorf("position_mode must be long_short_mode or net_mode, got %q", c.PositionMode)
	}
	switch c.TpTriggerPxType {
	case "last", "mark", "index":
	default:
		return fmt.Errorf("tp_trigger_px_type must be last, mark or index, got %q", c.TpTriggerPxType)
	}
	switch c.CandleCondition {
	case "none", "open_close", "high_low", "high_close":
	default:
		return fmt.Errorf("candlestick_condition %q is not supported", c.CandleCondition)
	}
	if !strings.HasSuffix(c.Symbol, "-SWAP") {
		return fmt.Errorf("symbol %q is not a perpetual swap instrument", c.Symbol)
	}
	if c.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %v", c.Leverage)
	}
	if c.RateDivisor <= 0 {
		return fmt.Errorf("rate_divisor must be positive, got %v", c.RateDivisor)
	}
	if c.TradeFeePct < 0 {
		return fmt.Errorf("trade_fee_pct must not be negative, got %v", c.TradeFeePct)
	}
	if c.OrdersPerBatch < 1 {
		return fmt.Errorf("orders_per_batch must be at least 1, got %d", c.OrdersPerBatch)
	}
	if c.LoopTime <= 0 {
		return fmt.Errorf("loop_time must be positive, got %v", c.LoopTime)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
