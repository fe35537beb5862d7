package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/abgdnv/producthub/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func products(n int) []catalog.Product {
	list := make([]catalog.Product, n)
	for i := range list {
		list[i] = catalog.Product{ID: fmt.Sprintf("p%d", i+1), Title: fmt.Sprintf("Product %d", i+1)}
	}
	return list
}

func loaded(t *testing.T, n int) *CatalogCache {
	t.Helper()
	c := New(DefaultPageSize)
	seq := c.BeginFetch("iphone")
	require.True(t, c.CompleteFetch(seq, products(n)))
	return c
}

func Test_CatalogCache_TotalPages(t *testing.T) {
	testCases := []struct {
		name     string
		count    int
		expected int
	}{
		{name: "empty result has one page", count: 0, expected: 1},
		{name: "single item", count: 1, expected: 1},
		{name: "exactly one page", count: 6, expected: 1},
		{name: "one over a page", count: 7, expected: 2},
		{name: "fourteen items", count: 14, expected: 3},
		{name: "exact multiple", count: 18, expected: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c := loaded(t, tc.count)
			// then
			assert.Equal(t, tc.expected, c.TotalPages())
		})
	}
}

func Test_CatalogCache_CurrentPageItems(t *testing.T) {
	// given
	c := loaded(t, 14)

	// then
	testCases := []struct {
		page        int
		expectedLen int
		firstID     string
	}{
		{page: 1, expectedLen: 6, firstID: "p1"},
		{page: 2, expectedLen: 6, firstID: "p7"},
		{page: 3, expectedLen: 2, firstID: "p13"},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("page %d", tc.page), func(t *testing.T) {
			require.True(t, c.SetPage(tc.page))
			items := c.CurrentPageItems()
			assert.Len(t, items, tc.expectedLen)
			assert.Equal(t, tc.firstID, items[0].ID)
		})
	}
}

func Test_CatalogCache_EmptyPage(t *testing.T) {
	// given
	c := New(DefaultPageSize)

	// then
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 1, c.Page())
	assert.Equal(t, 1, c.TotalPages())
	items := c.CurrentPageItems()
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func Test_CatalogCache_SetPage_OutOfRange(t *testing.T) {
	// given
	c := loaded(t, 14)
	require.True(t, c.SetPage(2))

	// when / then
	for _, n := range []int{0, -1, 4, 100} {
		assert.False(t, c.SetPage(n), "page %d should be rejected", n)
		assert.Equal(t, 2, c.Page())
	}
}

func Test_CatalogCache_ReplaceResetsCursor(t *testing.T) {
	// given
	c := loaded(t, 14)
	require.True(t, c.SetPage(3))

	// when
	seq := c.BeginFetch("samsung")
	require.True(t, c.CompleteFetch(seq, products(20)))

	// then
	assert.Equal(t, 1, c.Page())
	assert.Equal(t, 4, c.TotalPages())
	assert.Equal(t, StateLoaded, c.State())
	assert.Equal(t, "samsung", c.Query())
}

func Test_CatalogCache_Transitions(t *testing.T) {
	// given
	c := New(DefaultPageSize)
	fetchErr := errors.New("network down")

	// when
	seq := c.BeginFetch("iphone")
	// then
	assert.Equal(t, StateLoading, c.State())

	// when
	require.True(t, c.CompleteFetch(seq, products(3)))
	// then
	assert.Equal(t, StateLoaded, c.State())
	assert.Equal(t, 3, c.Len())

	// when
	seq = c.BeginFetch("iphone")
	require.True(t, c.FailFetch(seq, fetchErr))
	// then
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, c.Page())
	assert.ErrorIs(t, c.Err(), fetchErr)

	// when
	seq = c.BeginFetch("iphone")
	require.True(t, c.CompleteFetch(seq, nil))
	// then
	assert.Equal(t, StateLoaded, c.State(), "an empty result is not a failure")
	assert.NoError(t, c.Err())
}

func Test_CatalogCache_StaleFetchIsDiscarded(t *testing.T) {
	// given
	c := New(DefaultPageSize)
	first := c.BeginFetch("iph")
	second := c.BeginFetch("iphone")

	// when
	secondApplied := c.CompleteFetch(second, products(2))
	firstApplied := c.CompleteFetch(first, products(9))
	firstFailed := c.FailFetch(first, errors.New("late failure"))

	// then
	assert.True(t, secondApplied)
	assert.False(t, firstApplied)
	assert.False(t, firstFailed)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, StateLoaded, c.State())
}

func Test_CatalogCache_ResultIsNotShared(t *testing.T) {
	// given
	source := products(3)
	c := New(DefaultPageSize)
	seq := c.BeginFetch("x")
	require.True(t, c.CompleteFetch(seq, source))

	// when
	source[0].Title = "mutated"
	page := c.CurrentPageItems()
	page[1].Title = "mutated too"

	// then
	items := c.Items()
	assert.Equal(t, "Product 1", items[0].Title)
	assert.Equal(t, "Product 2", items[1].Title)
}

func Test_CatalogCache_Find(t *testing.T) {
	// given
	c := loaded(t, 8)

	// when
	found, ok := c.Find("p8")
	_, missing := c.Find("nope")

	// then
	assert.True(t, ok)
	assert.Equal(t, "Product 8", found.Title)
	assert.False(t, missing)
}

func Test_CatalogCache_Snapshot(t *testing.T) {
	// given
	c := loaded(t, 14)
	require.True(t, c.SetPage(3))

	// when
	snap := c.Snapshot()

	// then
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "iphone", snap.Query)
	assert.Equal(t, 3, snap.Page)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, 14, snap.Total)
	assert.Len(t, snap.PageItems, 2)
}

func Test_CatalogCache_ConcurrentAccess(t *testing.T) {
	// given
	c := New(DefaultPageSize)
	var wg sync.WaitGroup

	// when
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			seq := c.BeginFetch("q")
			c.CompleteFetch(seq, products(i))
		}()
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
			c.SetPage(2)
		}()
	}
	wg.Wait()

	// then
	assert.Equal(t, StateLoaded, c.State())
	assert.GreaterOrEqual(t, c.Page(), 1)
	assert.LessOrEqual(t, c.Page(), c.TotalPages())
}

func Test_State_Text(t *testing.T) {
	for _, state := range []State{StateEmpty, StateLoading, StateLoaded, StateFailed} {
		// given
		text, err := state.MarshalText()
		require.NoError(t, err)

		// when
		var decoded State
		err = decoded.UnmarshalText(text)

		// then
		require.NoError(t, err)
		assert.Equal(t, state, decoded)
	}

	var unknown State
	assert.Error(t, unknown.UnmarshalText([]byte("stale")))
}
