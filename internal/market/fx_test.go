package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFXRateOutOfBandFallsBackToPersisted(t *testing.T) {
	d := NewData(Options{})
	d.fxFetch = func(ctx context.Context, url string) (float64, error) {
		return 9999, nil
	}
	d.persistFloat("fx", 1432.5, time.Hour)

	rate, err := d.fetchFXRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1432.5, rate)
	assert.Equal(t, 1432.5, d.FXRate(context.Background()))
}

func TestFXRateOutOfBandWithoutPersistedValue(t *testing.T) {
	d := NewData(Options{})
	d.fxFetch = func(ctx context.Context, url string) (float64, error) {
		return 123, nil // below the sanity band
	}

	_, err := d.fetchFXRate(context.Background())
	require.Error(t, err)

	// With no live, persisted, or prior value the accessor serves the
	// compiled-in baseline.
	assert.Equal(t, FallbackFXRate, d.FXRate(context.Background()))
}

func TestFXRateInBandPersistsAndRecovers(t *testing.T) {
	d := NewData(Options{})
	live := true
	d.fxFetch = func(ctx context.Context, url string) (float64, error) {
		if live {
			return 1450.25, nil
		}
		return 0, errors.New("feed down")
	}

	rate, err := d.fetchFXRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1450.25, rate)

	// Both upstreams die; the persisted rate keeps serving.
	live = false
	rate, err = d.fetchFXRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1450.25, rate)
}
