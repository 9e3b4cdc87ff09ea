package notify

import (
	"context"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPProducer publishes events to a durable topic exchange.
type AMQPProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewAMQPProducer(amqpURL, exchange string) (*AMQPProducer, error) {
	conn, err := amqp091.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPProducer{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *AMQPProducer) Publish(ctx context.Context, routingKey string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        raw,
		})
}

func (p *AMQPProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
