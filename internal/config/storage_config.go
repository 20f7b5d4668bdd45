package config

type StorageConfig interface {
	GetStorageBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetSQLitePath() string
	GetSessionFile() string
}

// Storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

type Storage struct {
	Backend       string `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"        envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX"    envDefault:"minu:"`
	SQLitePath    string `env:"SQLITE_PATH"     envDefault:"./data/minu.db"`
	SessionFile   string `env:"SESSION_FILE"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() string {
	return s.Backend
}

func (s Storage) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Storage) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Storage) GetRedisDB() int {
	return s.RedisDB
}

func (s Storage) GetRedisPrefix() string {
	return s.RedisPrefix
}

func (s Storage) GetSQLitePath() string {
	return s.SQLitePath
}

// GetSessionFile is the JSON file of the file backend; empty means ~/.minu/session.json
func (s Storage) GetSessionFile() string {
	return s.SessionFile
}
