package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/e2ekit/pkg/locator"
	"github.com/testforge/e2ekit/pkg/pages"
)

func TestWaitUntilState(t *testing.T) {
	tests := []struct {
		in   pages.WaitUntil
		want *playwright.WaitUntilState
	}{
		{pages.WaitLoad, playwright.WaitUntilStateLoad},
		{pages.WaitNetworkIdle, playwright.WaitUntilStateNetworkidle},
		{pages.WaitDOMContentLoaded, playwright.WaitUntilStateDomcontentloaded},
		{"", playwright.WaitUntilStateDomcontentloaded},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, waitUntilState(tt.in))
		})
	}
}

func TestLoadState_DefaultsToNetworkIdle(t *testing.T) {
	assert.Equal(t, playwright.LoadStateNetworkidle, loadState(""))
	assert.Equal(t, playwright.LoadStateLoad, loadState(pages.WaitLoad))
}

func TestSelectorState(t *testing.T) {
	assert.Equal(t, playwright.WaitForSelectorStateVisible, selectorState(locator.StateVisible))
	assert.Equal(t, playwright.WaitForSelectorStateHidden, selectorState(locator.StateHidden))
	assert.Equal(t, playwright.WaitForSelectorStateAttached, selectorState(locator.StateAttached))
	assert.Equal(t, playwright.WaitForSelectorStateDetached, selectorState(locator.StateDetached))
}

func TestTimeoutMs(t *testing.T) {
	t.Run("no deadline and no timeout", func(t *testing.T) {
		assert.Nil(t, timeoutMs(context.Background(), 0))
	})

	t.Run("explicit timeout", func(t *testing.T) {
		got := timeoutMs(context.Background(), 1500*time.Millisecond)
		require.NotNil(t, got)
		assert.Equal(t, 1500.0, *got)
	})

	t.Run("deadline shorter than timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		got := timeoutMs(ctx, time.Minute)
		require.NotNil(t, got)
		assert.LessOrEqual(t, *got, 100.0)
	})
}

func TestMapError(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, mapError(ctx, nil))

	timeout := mapError(ctx, fmt.Errorf("clicking: %w", playwright.ErrTimeout))
	assert.ErrorIs(t, timeout, locator.ErrTimeout)

	other := errors.New("strict mode violation")
	assert.Equal(t, other, mapError(ctx, other))
}
