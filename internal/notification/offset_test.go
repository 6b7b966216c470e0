package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	t.Parallel()

	cases := []struct {
		token string
		want  time.Duration
		text  string
	}{
		{token: "15m", want: 15 * time.Minute, text: "15m"},
		{token: "1h", want: time.Hour, text: "1h"},
		{token: " 24H ", want: 24 * time.Hour, text: "24h"},
		{token: "2d", want: 48 * time.Hour, text: "2d"},
		{token: "007m", want: 7 * time.Minute, text: "7m"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := ParseOffset(tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Duration())
			assert.Equal(t, tc.text, got.String())
		})
	}
}

func TestParseOffsetRejects(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"", "h", "1w", "1.5h", "-1h", "0m", "1 h", "h1", "366d", "99999999999999999999h"} {
		_, err := ParseOffset(token)
		require.ErrorIs(t, err, ErrInvalidOffsetToken, "token %q", token)
	}

	_, err := ParseOffset("365d")
	require.NoError(t, err)
}

func TestParseOffsetsDedupesByLeadTime(t *testing.T) {
	t.Parallel()

	got, err := ParseOffsets([]string{"24h", "1h", "60m", "1d", "15m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"24h", "1h", "15m"}, Strings(got))

	_, err = ParseOffsets([]string{"1h", "soon"})
	require.ErrorIs(t, err, ErrInvalidOffsetToken)

	empty, err := ParseOffsets(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOffsetJSONUsesTokenForm(t *testing.T) {
	t.Parallel()

	var decoded struct {
		Offsets []Offset `json:"offsets"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"offsets":["30m","2h"]}`), &decoded))
	assert.Equal(t, []Offset{{Amount: 30, Unit: UnitMinute}, {Amount: 2, Unit: UnitHour}}, decoded.Offsets)

	encoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"offsets":["30m","2h"]}`, string(encoded))

	require.ErrorIs(t, json.Unmarshal([]byte(`{"offsets":["2y"]}`), &decoded), ErrInvalidOffsetToken)
}
