package redis

/*
Настройки, которые могут (а не которые – должны) быть в конфиге для подключения хранилища:

host = "localhost"
port = "6379"
password = ""
db = "0"
key = "volovo:raw"
*/

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

type Connector struct {
	connection *redis.Client
	config     map[string]string
	key        string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	db := 0
	if c.config["db"] != "" {
		var err error
		if db, err = strconv.Atoi(c.config["db"]); err != nil {
			return fmt.Errorf("не удалось получить номер базы: %v", err)
		}
	}

	c.key = c.config["key"]
	if c.key == "" {
		c.key = "volovo:raw"
	}

	c.connection = redis.NewClient(&redis.Options{
		Addr:     c.config["host"] + ":" + c.config["port"],
		Password: c.config["password"],
		DB:       db,
	})

	if err := c.connection.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %v", err)
	}
	return nil
}

func (c *Connector) Save(msg interface{ ToBytes() ([]byte, error) }) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на ответ источника")
	}

	body, err := msg.ToBytes()
	if err != nil {
		return fmt.Errorf("ошибка сериализации ответа: %v", err)
	}

	if err = c.connection.RPush(context.Background(), c.key, body).Err(); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
