package amqp

import (
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Message is one raw webhook payload. The body travels untouched; the id and
// receive time ride in the AMQP properties.
type Message struct {
	ID         string
	ReceivedAt time.Time
	Body       []byte
}

func NewMessage(body []byte) Message {
	return Message{ID: uuid.NewString(), ReceivedAt: time.Now().UTC(), Body: body}
}

func (m Message) publishing() amqp091.Publishing {
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    m.ID,
		Timestamp:    m.ReceivedAt,
		Body:         m.Body,
	}
}

func messageFromDelivery(d amqp091.Delivery) Message {
	id := d.MessageId
	if id == "" {
		id = uuid.NewString()
	}
	return Message{ID: id, ReceivedAt: d.Timestamp, Body: d.Body}
}
