package nats

/*
Настройки, которые могут (а не которые – должны) быть в конфиге для подключения хранилища:

host = "localhost"
port = "4222"
user = ""
password = ""
topic = "volovo.raw"
*/

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

type Connector struct {
	connection *nats.Conn
	config     map[string]string
	topic      string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error

	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg

	c.topic = c.config["topic"]
	if c.topic == "" {
		c.topic = "volovo.raw"
	}

	connStr := fmt.Sprintf("nats://%s:%s", c.config["host"], c.config["port"])

	var opts []nats.Option
	if c.config["user"] != "" {
		opts = append(opts, nats.UserInfo(c.config["user"], c.config["password"]))
	}

	if c.connection, err = nats.Connect(connStr, opts...); err != nil {
		return fmt.Errorf("не удалось подключиться к NATS: %v", err)
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

	if err = c.connection.Publish(c.topic, body); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	c.connection.Close()
	return nil
}
