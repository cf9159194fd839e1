package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DriverJSONFile = "json"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig selects the persistence driver. The JSON file driver is the
// default and needs only a data directory; the postgres driver additionally
// requires the POSTGRES_* variables.
type StoreConfig struct {
	Driver  string
	DataDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RateLimitConfig struct {
	Limit     int
	WindowSec int
}

type AuthConfig struct {
	BcryptCost int
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = DriverJSONFile
	}
	if driver != DriverJSONFile && driver != DriverPostgres {
		return nil, fmt.Errorf("%s: unknown STORE_DRIVER %q", op, driver)
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	var postgresCfg PostgresConfig
	if driver == DriverPostgres {
		postgresCfg, err = postgresFromEnv()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	// An empty REDIS_ADDR disables the cache, limiter, pubsub and
	// idempotency layers; the core flows work without them.
	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}

	rlLimit, err := intEnv("RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rlWindow, err := intEnv("RATE_LIMIT_WINDOW_SEC", 60)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bcryptCost, err := intEnv("BCRYPT_COST", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Store: StoreConfig{
			Driver:  driver,
			DataDir: dataDir,
		},
		Postgres:  postgresCfg,
		Redis:     redisCfg,
		RateLimit: RateLimitConfig{Limit: rlLimit, WindowSec: rlWindow},
		Auth:      AuthConfig{BcryptCost: bcryptCost},
	}, nil
}

func postgresFromEnv() (PostgresConfig, error) {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_USER")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_PASSWORD")
	}

	name := os.Getenv("POSTGRES_DB")
	if name == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_DB")
	}

	sslMode := os.Getenv("POSTGRES_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	return PostgresConfig{
		User:     user,
		Password: password,
		Name:     name,
		Host:     host,
		Port:     port,
		SSLMode:  sslMode,
	}, nil
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return v, nil
}
