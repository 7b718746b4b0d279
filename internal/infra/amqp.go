// README: RabbitMQ connection setup for the SMS gateway publisher.
package infra

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQPConn struct {
	conn *amqp.Connection
}

func NewAMQP(url string) (*AMQPConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &AMQPConn{conn: conn}, nil
}

func (c *AMQPConn) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

func (c *AMQPConn) Close() error {
	return c.conn.Close()
}
