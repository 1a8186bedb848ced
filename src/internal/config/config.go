package config

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Configuration struct {
	Logs     LogsSettings     `mapstructure:"logs"`
	App      Application      `mapstructure:"app"`
	Database Database         `mapstructure:"database"`
	Queue    QueueConfig      `mapstructure:"queue"`
	Redis    Redis            `mapstructure:"redis"`
	Security SecuritySettings `mapstructure:"security"`
	Server   ServerSettings   `mapstructure:"server"`
	Rooms    RoomsConfig      `mapstructure:"rooms"`
	Cache    CacheConfig      `mapstructure:"cache"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name    string `mapstructure:"name"`
	Timeout int    `mapstructure:"timeout"`
	Version string `mapstructure:"version"`
}

type Database struct {
	Url         string      `mapstructure:"url"`
	DbName      string      `mapstructure:"dbname"`
	Collections Collections `mapstructure:"collections"`
	Timeout     int         `mapstructure:"timeout"`
}

type Collections struct {
	Rooms     string `mapstructure:"rooms"`
	Stays     string `mapstructure:"stays"`
	Ledger    string `mapstructure:"ledger"`
	Wallets   string `mapstructure:"wallets"`
	Snapshots string `mapstructure:"snapshots"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url              string `mapstructure:"url"`
	Exchange         string `mapstructure:"exchange"`
	ExchangeType     string `mapstructure:"exchange-type"`
	DelayQueue       string `mapstructure:"delay-queue"`
	TerminationQueue string `mapstructure:"termination-queue"`
	TerminationKey   string `mapstructure:"termination-routing-key"`
	NotificationKey  string `mapstructure:"notification-routing-key"`
	PrefetchCount    int    `mapstructure:"prefetch-count"`
	ReconnectDelay   int    `mapstructure:"reconnect-delay"`
	Consumer         string `mapstructure:"consumer"`
	Durable          bool   `mapstructure:"durable"`
	AutoDelete       bool   `mapstructure:"auto-delete"`
	Internal         bool   `mapstructure:"internal"`
	NoWait           bool   `mapstructure:"no-wait"`
	Exclusive        bool   `mapstructure:"exclusive"`
	AutoAck          bool   `mapstructure:"auto-ack"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type SecuritySettings struct {
	JwtKey         string `mapstructure:"jwt-key"`
	SchedulerToken string `mapstructure:"scheduler-token"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`
}

type RoomsConfig struct {
	MinPlannedMinutes int `mapstructure:"min-planned-minutes"`
	MaxPlannedMinutes int `mapstructure:"max-planned-minutes"`
	MaxMembers        int `mapstructure:"max-members"`
	StayRepairLimit   int `mapstructure:"stay-repair-limit"`
}

type CacheConfig struct {
	LeaderboardKeyPrefix     string `mapstructure:"leaderboard-key-prefix"`
	LeaderboardExpirySeconds int    `mapstructure:"leaderboard-expiry-seconds"`
	WalletKeyPrefix          string `mapstructure:"wallet-key-prefix"`
	WalletExpirationMinutes  int    `mapstructure:"wallet-expiration-minutes"`
}

func Load() *Configuration {
	cfg := read()
	logrus.Info("Configuration loaded")

	// Override with environment variables
	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	jwtKey := os.Getenv("JWT_KEY")
	if jwtKey != "" {
		cfg.Security.JwtKey = jwtKey
	}

	schedulerToken := os.Getenv("SCHEDULER_TOKEN")
	if schedulerToken != "" {
		cfg.Security.SchedulerToken = schedulerToken
	}

	return cfg
}

func read() *Configuration {
	viper.SetConfigFile("src/internal/config/cfg.yml")
	viper.AutomaticEnv()
	viper.SetConfigType("yml")

	var config Configuration

	err := viper.ReadInConfig()
	if err != nil {
		logrus.Panicf("Error reading config file, %s", err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		logrus.Panicf("Error unmarshalling config file, %s", err)
	}

	return &config
}
