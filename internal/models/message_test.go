package models

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTS(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"1718900000.000200", time.Unix(1718900000, 200_000), true},
		{"1718900000", time.Unix(1718900000, 0), true},
		{"1718900000.5", time.Unix(1718900000, 500_000_000), true},
		{"", time.Time{}, false},
		{"abc.123", time.Time{}, false},
		{"-5.000001", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTS(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestFormatTSRoundTrip(t *testing.T) {
	at := time.Unix(1718900000, 123_456_000)
	ts := FormatTS(at)
	assert.Equal(t, "1718900000.123456", ts)

	parsed, ok := ParseTS(ts)
	require.True(t, ok)
	assert.True(t, at.Equal(parsed))
}

func TestMessageEqualityIsFullValue(t *testing.T) {
	a := Message{Text: "hi", ChannelID: "C1", UserID: "U1", Timestamp: "1.000001"}
	b := a
	seen := map[Message]struct{}{a: {}}

	_, ok := seen[b]
	assert.True(t, ok)

	b.Text = "hi!"
	_, ok = seen[b]
	assert.False(t, ok)
}

func TestMessageLessOrdersByTimestamp(t *testing.T) {
	msgs := []Message{
		{Text: "c", Timestamp: "3.000000"},
		{Text: "a", Timestamp: "1.000000"},
		{Text: "b2", Timestamp: "2.000000"},
		{Text: "b1", Timestamp: "2.000000"},
		{Text: "z", Timestamp: "garbage"},
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Less(msgs[j]) })

	var order []string
	for _, m := range msgs {
		order = append(order, m.Text)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c", "z"}, order)
}

func TestMergeChannels(t *testing.T) {
	base := []Channel{{ID: "C1", Name: "general"}, {ID: "D1", Name: DMChannelName}}
	got := MergeChannels(base, Channel{ID: "C1", Name: "general"}, Channel{ID: "C2", Name: "random"})

	assert.Equal(t, []Channel{
		{ID: "C1", Name: "general"},
		{ID: "D1", Name: DMChannelName},
		{ID: "C2", Name: "random"},
	}, got)
	assert.True(t, got[1].IsDM())
}
