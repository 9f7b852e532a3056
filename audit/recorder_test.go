package audit

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftmarket/core/types"
	"nftmarket/native/market"
)

type marketWrapper struct {
	evt *types.Event
}

func (w marketWrapper) EventType() string {
	if w.evt == nil {
		return ""
	}
	return w.evt.Type
}

func (w marketWrapper) Event() *types.Event { return w.evt }

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	rec.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return rec
}

func testListing() *market.Listing {
	var registry, asset, seller [20]byte
	registry[0] = 0x10
	asset[0] = 0xA0
	seller[0] = 0x01
	return &market.Listing{
		Registry:   registry,
		ItemID:     1,
		PriceAsset: asset,
		Price:      big.NewInt(25),
		Seller:     seller,
		CreatedAt:  1_700_000_000,
	}
}

func TestRecorderPersistsEvents(t *testing.T) {
	rec := openTestRecorder(t)
	listing := testListing()

	rec.Emit(marketWrapper{market.NewListedEvent(listing)})
	rec.Emit(marketWrapper{market.NewUnlistedEvent(listing)})

	entries, err := rec.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	require.Equal(t, market.EventTypeUnlisted, entries[0].EventType)
	require.Equal(t, market.EventTypeListed, entries[1].EventType)
	require.Equal(t, "25", entries[1].Attributes["price"])
	require.Equal(t, "1", entries[1].Attributes["itemId"])
}

func TestRecentHonoursLimit(t *testing.T) {
	rec := openTestRecorder(t)
	listing := testListing()
	for i := 0; i < 5; i++ {
		rec.Emit(marketWrapper{market.NewListedEvent(listing)})
	}

	entries, err := rec.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestRecentOnEmptyJournal(t *testing.T) {
	rec := openTestRecorder(t)
	entries, err := rec.Recent(10)
	require.NoError(t, err)
	require.Empty(t, entries)
}
