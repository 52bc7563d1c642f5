package models

import (
	"strconv"
	"strings"
	"time"
)

// Message is a single chat message as delivered to an agent.
//
// Message is a comparable value: two messages are the same message iff every
// field matches, so it can be used directly as a map key for "already seen"
// bookkeeping.
type Message struct {
	Text      string `json:"message"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"` // provider-native, e.g. "1718900000.000200"
}

// TS parses the provider timestamp ("<unix seconds>.<micros>").
func (m Message) TS() (time.Time, bool) {
	return ParseTS(m.Timestamp)
}

// Less orders messages by timestamp, then by the remaining fields so the
// order is total.
func (m Message) Less(o Message) bool {
	mt, mok := m.TS()
	ot, ook := o.TS()
	switch {
	case mok && ook && !mt.Equal(ot):
		return mt.Before(ot)
	case mok != ook:
		return mok
	case m.Timestamp != o.Timestamp:
		return m.Timestamp < o.Timestamp
	case m.ChannelID != o.ChannelID:
		return m.ChannelID < o.ChannelID
	case m.UserID != o.UserID:
		return m.UserID < o.UserID
	}
	return m.Text < o.Text
}

// ParseTS parses a Slack-style timestamp.
func ParseTS(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	secStr, fracStr, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, false
	}
	var nsec int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil || frac < 0 {
			return time.Time{}, false
		}
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), true
}

// FormatTS renders t as a Slack-style timestamp with microsecond precision.
func FormatTS(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + padMicros(t.Nanosecond()/1000)
}

func padMicros(us int) string {
	s := strconv.Itoa(us)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
