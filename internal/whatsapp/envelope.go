// Package whatsapp holds the Cloud API webhook envelope and a Graph API client for
// replies and media downloads.
package whatsapp

import (
	"strconv"
	"strings"
	"time"

	"expensebot/internal/core"
)

const (
	ObjectBusinessAccount = "whatsapp_business_account"
	FieldMessages         = "messages"
)

type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
	Image     *Media `json:"image,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	SHA256   string `json:"sha256"`
}

type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors"`
}

type StatusError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// SenderName looks up the profile name the platform sent for waID.
func (v Value) SenderName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}

// Inbound converts a platform message into the bot's message type.
func (m Message) Inbound(senderName string) core.InboundMessage {
	in := core.InboundMessage{
		ID:         m.ID,
		From:       m.From,
		SenderName: senderName,
		Type:       core.MessageUnsupported,
		Timestamp:  parseUnix(m.Timestamp),
	}
	switch {
	case m.Type == "text" && m.Text != nil:
		in.Type = core.MessageText
		in.Text = m.Text.Body
	case m.Type == "image" && m.Image != nil && m.Image.ID != "":
		in.Type = core.MessageImage
		in.MediaID = m.Image.ID
		in.MimeType = m.Image.MimeType
		in.Text = m.Image.Caption
	}
	return in
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
