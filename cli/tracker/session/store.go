package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// CredentialStore — долговременное хранилище строки cookie. Это единственное
// межпроцессное состояние менеджера сессии: два параллельных процесса,
// разделяющих одно хранилище, будут перезаписывать cookie друг друга.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, cookieLine string) error
}

// FileStore хранит cookie в локальном файле (cookie.txt).
type FileStore struct {
	Path string
}

func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("не удалось прочитать файл cookie: %w", err)
	}
	return string(data), nil
}

func (s *FileStore) Save(_ context.Context, cookieLine string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), os.ModePerm); err != nil {
		return fmt.Errorf("не удалось создать директорию для cookie: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(cookieLine), 0600); err != nil {
		return fmt.Errorf("не удалось сохранить файл cookie: %w", err)
	}
	return nil
}

// RedisStore хранит cookie в Redis — для развёртываний, где локального
// диска нет или синхронизатор переезжает между хостами.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg map[string]string) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	db := 0
	if cfg["db"] != "" {
		var err error
		if db, err = strconv.Atoi(cfg["db"]); err != nil {
			return nil, fmt.Errorf("не удалось получить номер базы Redis: %w", err)
		}
	}

	key := cfg["key"]
	if key == "" {
		key = "volovo:cookie"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg["host"] + ":" + cfg["port"],
		Password: cfg["password"],
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("Redis недоступен: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("не удалось прочитать cookie из Redis: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Save(ctx context.Context, cookieLine string) error {
	if err := s.client.Set(ctx, s.key, cookieLine, 0).Err(); err != nil {
		return fmt.Errorf("не удалось сохранить cookie в Redis: %w", err)
	}
	return nil
}
