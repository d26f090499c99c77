package profilecache

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetsjsl/GOB-sub006/internal/contracts"
)

const legacyMap = `{"aapl":{"id":"AAPL","lastModified":1690000000000,"data":[{"year":2022,"priceHigh":182.9,"priceLow":125.9,"earningsPerShare":6.11,"cashFlowPerShare":7.5,"bookValuePerShare":3.2,"dividendPerShare":0.91}],"assumptions":{"currentPrice":190.5,"currentDividend":0.96,"baseYear":2022,"targetPE":22},"info":{"symbol":"AAPL","name":"Apple Inc."},"notes":"","isWatchlist":false}}`

func TestEncodeDecode(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	lib := contracts.Library{"MSFT": {ID: "MSFT", Data: []contracts.AnnualRecord{{Year: 2023}}}}

	raw, err := Encode(lib, now)
	require.NoError(t, err)

	entry, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, entry.Legacy)
	assert.True(t, entry.Timestamp.Equal(now))
	require.Contains(t, entry.Data, "MSFT")
	assert.Equal(t, 2023, entry.Data["MSFT"].Data[0].Year)
}

func TestDecode_LegacyMap(t *testing.T) {
	entry, err := Decode([]byte(legacyMap))
	require.NoError(t, err)

	assert.True(t, entry.Legacy)
	assert.True(t, entry.Timestamp.IsZero())
	require.Contains(t, entry.Data, "AAPL", "keys are normalized")
	p := entry.Data["AAPL"]
	assert.Equal(t, "Apple Inc.", p.Info.Name)
	assert.Equal(t, 22.0, *p.Assumptions.TargetPE)
	assert.Nil(t, p.Assumptions.TargetPCF)
	assert.Nil(t, p.Data[0].AutoFetched, "legacy rows are user-owned")
}

func TestDecode_StringEncoded(t *testing.T) {
	entry, err := Decode([]byte(strconv.Quote(legacyMap)))
	require.NoError(t, err)
	assert.True(t, entry.Legacy)
	assert.Contains(t, entry.Data, "AAPL")
}

func TestDecode_StringEncodedData(t *testing.T) {
	raw := `{"data":` + strconv.Quote(legacyMap) + `,"timestamp":1700000000000}`

	entry, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.False(t, entry.Legacy)
	assert.Equal(t, int64(1_700_000_000_000), entry.Timestamp.UnixMilli())
	assert.Contains(t, entry.Data, "AAPL")
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "[1,2]", `{"AAPL":`, `"not json"`, `{"data":{},"timestamp":"soon"}`} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, "payload %q", raw)
	}
}
