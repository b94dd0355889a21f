package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentSells_BalanceCheckIsSerialized(t *testing.T) {
	// Two sells of 6 against a balance of 10: whichever wins the per-asset
	// lock succeeds, the other must see the reduced balance and be rejected.
	svc, assetID, exchangeID := setupTest(t)
	_, err := svc.RecordBuy(buyInput(assetID, exchangeID, "10", "100", day(1)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSell(sellInput(assetID, exchangeID, "6", "150", day(2)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	pos, err := svc.Position(assetID)
	require.NoError(t, err)
	assertDecimalEqual(t, "4", pos.Balance)
}

func TestConcurrentBuys_AllApply(t *testing.T) {
	svc, assetID, exchangeID := setupTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordBuy(buyInput(assetID, exchangeID, "1", "100", day(1)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pos, err := svc.Position(assetID)
	require.NoError(t, err)
	assertDecimalEqual(t, "8", pos.Balance)
}
