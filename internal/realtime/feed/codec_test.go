package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

func TestDecodeEvent(t *testing.T) {
	ev, ok, err := DecodeEvent([]byte(`{"eventType":"update","table":"tickers","new":{"ticker":"xom","security_rank":"A"},"old":{"ticker":"xom"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, contracts.EventUpdate, ev.EventType)
	assert.Equal(t, "XOM", ev.Symbol())
	require.NotNil(t, ev.New.SecurityRank)
	assert.Equal(t, "A", *ev.New.SecurityRank)
}

func TestDecodeEvent_DeleteUsesOldRow(t *testing.T) {
	ev, ok, err := DecodeEvent([]byte(`{"eventType":"DELETE","new":null,"old":{"ticker":"CVX"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CVX", ev.Symbol())
}

func TestDecodeEvent_NonEventFrames(t *testing.T) {
	_, ok, err := DecodeEvent([]byte(`{"type":"ack"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = DecodeEvent([]byte(`{"eventType":"INSERT","new":{}}`))
	assert.Error(t, err)
}

func TestMatchesTable(t *testing.T) {
	assert.True(t, matchesTable(contracts.ChangeEvent{}, "tickers"))
	assert.True(t, matchesTable(contracts.ChangeEvent{Table: "Tickers"}, "tickers"))
	assert.False(t, matchesTable(contracts.ChangeEvent{Table: "prices"}, "tickers"))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(time.Second, time.Minute))
	assert.Equal(t, time.Minute, backoff(45*time.Second, time.Minute))
}
