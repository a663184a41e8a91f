package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusAdvanceIsMonotonic(t *testing.T) {
	tests := []struct {
		from, next, want Status
	}{
		{StatusSent, StatusDelivered, StatusDelivered},
		{StatusSent, StatusRead, StatusRead},
		{StatusDelivered, StatusRead, StatusRead},
		{StatusRead, StatusDelivered, StatusRead},
		{StatusRead, StatusSent, StatusRead},
		{StatusDelivered, StatusSent, StatusDelivered},
		{StatusDelivered, Status("bogus"), StatusDelivered},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.next), func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.Advance(tt.next))
		})
	}
}

func TestStatusUnmarshalRejectsUnknown(t *testing.T) {
	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"read"`), &s))
	require.Equal(t, StatusRead, s)

	require.Error(t, json.Unmarshal([]byte(`"seen"`), &s))
}

func TestMessageHasContent(t *testing.T) {
	require.False(t, (&Message{}).HasContent())
	require.True(t, (&Message{Text: "hi"}).HasContent())
	require.True(t, (&Message{Image: "https://img"}).HasContent())
}
