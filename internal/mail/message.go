package mail

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// MessageInfo is the summary record of one message.
type MessageInfo struct {
	UID     string
	Flags   Flags
	Subject string
	From    string
	Date    time.Time
	Size    int64
}

// Message is a stored message: its exact bytes and parsed header.
type Message struct {
	Info   MessageInfo
	Header gomail.Header
	Raw    []byte
}

// Subject returns the decoded Subject header.
func (m *Message) Subject() string {
	s, err := m.Header.Subject()
	if err != nil {
		return m.Header.Get("Subject")
	}
	return s
}

// ParseMessage parses raw as a MIME message. Unknown charsets are not an
// error; the affected text is kept undecoded.
func ParseMessage(raw []byte) (*Message, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if ent == nil {
		return nil, errors.New("parse message: no header")
	}
	m := &Message{
		Header: gomail.Header{Header: ent.Header},
		Raw:    raw,
	}
	m.Info = m.summarize()
	return m, nil
}

func (m *Message) summarize() MessageInfo {
	info := MessageInfo{
		Subject: m.Subject(),
		Size:    int64(len(m.Raw)),
	}
	if from, err := m.Header.AddressList("From"); err == nil && len(from) > 0 {
		info.From = from[0].String()
	} else {
		info.From = m.Header.Get("From")
	}
	if date, err := m.Header.Date(); err == nil {
		info.Date = date.UTC()
	}
	return info
}
