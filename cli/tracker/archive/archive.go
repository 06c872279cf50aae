package archive

import (
	"errors"

	"github.com/daniil11ru/volovo/cli/tracker/archive/store/mysql"
	"github.com/daniil11ru/volovo/cli/tracker/archive/store/nats"
	"github.com/daniil11ru/volovo/cli/tracker/archive/store/postgresql"
	"github.com/daniil11ru/volovo/cli/tracker/archive/store/rabbitmq"
	"github.com/daniil11ru/volovo/cli/tracker/archive/store/redis"
	"github.com/daniil11ru/volovo/cli/tracker/archive/store/tarantool_queue"
)

var ErrInvalidStorage = errors.New("хранилище не задано")
var ErrUnknownStorage = errors.New("хранилище не поддерживается")

type Store interface {
	Connector
	Saver
}

// Saver интерфейс для подключения архивных хранилищ
type Saver interface {
	// Save сохранение в хранилище
	Save(interface{ ToBytes() ([]byte, error) }) error
}

// Connector интерфейс для подключения архивных хранилищ
type Connector interface {
	// Init установка соединения с хранилищем
	Init(map[string]string) error

	// Close закрытие соединения с хранилищем
	Close() error
}

// Repository — набор архивных хранилищ сырых ответов источника.
type Repository struct {
	storages []Saver
}

// AddStore добавляет хранилище для сохранения данных
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
}

// Save сохраняет сырой ответ во все установленные хранилища
func (r *Repository) Save(m interface{ ToBytes() ([]byte, error) }) error {
	for _, store := range r.storages {
		if err := store.Save(m); err != nil {
			return err
		}
	}
	return nil
}

// Close закрывает все хранилища, умеющие закрываться
func (r *Repository) Close() error {
	var lastErr error
	for _, store := range r.storages {
		if c, ok := store.(Connector); ok {
			if err := c.Close(); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// Empty сообщает, что ни одно хранилище не настроено.
func (r *Repository) Empty() bool {
	return len(r.storages) == 0
}

// LoadStorages загружает хранилища из структуры конфига
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	var db Store
	for store, params := range storages {
		switch store {
		case "rabbitmq":
			db = &rabbitmq.Connector{}
		case "postgresql":
			db = &postgresql.Connector{}
		case "nats":
			db = &nats.Connector{}
		case "tarantool_queue":
			db = &tarantool_queue.Connector{}
		case "redis":
			db = &redis.Connector{}
		case "mysql":
			db = &mysql.Connector{}
		default:
			return ErrUnknownStorage
		}

		if err := db.Init(params); err != nil {
			return err
		}

		r.AddStore(db)
	}
	return nil
}

// NewRepository создает пустой репозиторий
func NewRepository() *Repository {
	return &Repository{}
}
