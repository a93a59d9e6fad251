package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Game      GameConfig
	Email     EmailConfig
	WebSocket WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит настройки подключения к Redis.
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов Redis (хост:порт). Для 'single', если не пуст,
	// используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationHrs     int    `mapstructure:"expirationHrs"`
	WSTicketExpirySec int    `mapstructure:"wsTicketExpirySec"` // Время жизни тикета для WebSocket в секундах
}

// GameConfig содержит параметры игрового цикла "колеса".
// Сумма процентов обязана равняться 100; проверяется при загрузке.
type GameConfig struct {
	// InitialBalance: стартовый баланс нового аккаунта в монетах.
	InitialBalance int64 `mapstructure:"initial_balance"`

	// MinParticipants: минимум участников для автостарта раунда.
	MinParticipants int `mapstructure:"min_participants"`

	// AutoStartDelaySec: задержка от создания раунда до автостарта, в секундах.
	AutoStartDelaySec int `mapstructure:"auto_start_delay_sec"`

	// EliminationIntervalMs: интервал между выбываниями, в миллисекундах.
	EliminationIntervalMs int `mapstructure:"elimination_interval_ms"`

	// CountdownSeconds: длительность обратного отсчета перед автостартом.
	CountdownSeconds int `mapstructure:"countdown_seconds"`

	// Распределение пула: победитель / админ-создатель / приложение.
	WinnerPct int `mapstructure:"winner_pct"`
	AdminPct  int `mapstructure:"admin_pct"`
	AppPct    int `mapstructure:"app_pct"`
}

// AutoStartDelay возвращает задержку автостарта как time.Duration
func (g *GameConfig) AutoStartDelay() time.Duration {
	return time.Duration(g.AutoStartDelaySec) * time.Second
}

// EliminationInterval возвращает интервал выбывания как time.Duration
func (g *GameConfig) EliminationInterval() time.Duration {
	return time.Duration(g.EliminationIntervalMs) * time.Millisecond
}

// EmailConfig содержит настройки отправки писем (Resend)
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	// AllowedOrigins: политика происхождения для real-time канала.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// ClientSendBuffer: размер буфера исходящих сообщений клиента.
	ClientSendBuffer int `mapstructure:"client_send_buffer"`

	Cluster ClusterConfig `mapstructure:"cluster"`
}

// ClusterConfig содержит настройки кластеризации WebSocket через Redis Pub/Sub
type ClusterConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	InstanceID       string `mapstructure:"instance_id"`
	BroadcastChannel string `mapstructure:"broadcast_channel"`
	DirectChannel    string `mapstructure:"direct_channel"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, чтобы избежать глобального состояния

	// Значения по умолчанию для игрового цикла
	vip.SetDefault("game.initial_balance", 1000)
	vip.SetDefault("game.min_participants", 3)
	vip.SetDefault("game.auto_start_delay_sec", 300)
	vip.SetDefault("game.elimination_interval_ms", 3000)
	vip.SetDefault("game.countdown_seconds", 10)
	vip.SetDefault("game.winner_pct", 70)
	vip.SetDefault("game.admin_pct", 20)
	vip.SetDefault("game.app_pct", 10)
	vip.SetDefault("websocket.client_send_buffer", 64)
	vip.SetDefault("websocket.cluster.broadcast_channel", "spinwheel:ws:broadcast")
	vip.SetDefault("websocket.cluster.direct_channel", "spinwheel:ws:direct")

	// Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")
	vip.BindEnv("jwt.wsTicketExpirySec", "JWT_WSTICKETEXPIRYSEC")

	vip.BindEnv("game.initial_balance", "GAME_INITIAL_BALANCE")
	vip.BindEnv("game.min_participants", "GAME_MIN_PARTICIPANTS")
	vip.BindEnv("game.auto_start_delay_sec", "GAME_AUTO_START_DELAY_SEC")
	vip.BindEnv("game.elimination_interval_ms", "GAME_ELIMINATION_INTERVAL_MS")
	vip.BindEnv("game.winner_pct", "GAME_WINNER_PCT")
	vip.BindEnv("game.admin_pct", "GAME_ADMIN_PCT")
	vip.BindEnv("game.app_pct", "GAME_APP_PCT")

	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	// Путь к файлу конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Game: fee split %d/%d/%d, min participants %d", cfg.Game.WinnerPct, cfg.Game.AdminPct, cfg.Game.AppPct, cfg.Game.MinParticipants)
		log.Printf("Game: auto start delay %v, elimination interval %v", cfg.Game.AutoStartDelay(), cfg.Game.EliminationInterval())
		log.Printf("Websocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	// Проверка обязательных параметров
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if err := validateGame(&cfg.Game); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateGame проверяет согласованность игровых параметров.
// Некорректная конфигурация — это ошибка старта процесса, не runtime-ошибка.
func validateGame(g *GameConfig) error {
	if g.WinnerPct+g.AdminPct+g.AppPct != 100 {
		return fmt.Errorf("game pool percentages must sum to 100, got %d+%d+%d", g.WinnerPct, g.AdminPct, g.AppPct)
	}
	if g.WinnerPct < 0 || g.AdminPct < 0 || g.AppPct < 0 {
		return fmt.Errorf("game pool percentages must be non-negative")
	}
	if g.MinParticipants < 3 {
		return fmt.Errorf("game.min_participants must be at least 3, got %d", g.MinParticipants)
	}
	if g.InitialBalance < 0 {
		return fmt.Errorf("game.initial_balance must be non-negative, got %d", g.InitialBalance)
	}
	if g.EliminationIntervalMs <= 0 {
		return fmt.Errorf("game.elimination_interval_ms must be positive, got %d", g.EliminationIntervalMs)
	}
	if g.AutoStartDelaySec <= 0 {
		return fmt.Errorf("game.auto_start_delay_sec must be positive, got %d", g.AutoStartDelaySec)
	}
	if g.CountdownSeconds < 0 {
		return fmt.Errorf("game.countdown_seconds must be non-negative, got %d", g.CountdownSeconds)
	}
	return nil
}
