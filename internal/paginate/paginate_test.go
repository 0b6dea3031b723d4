package paginate

import (
	"errors"
	"testing"

	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{"id": i}
	}
	return out
}

func TestOffsetSyntheticTokens(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypeOffset}, 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, "offset", p.Option.FieldName)
	assert.Equal(t, InjectRequestParameter, p.Option.InjectInto)

	_, ok := p.Token()
	assert.False(t, ok)

	tok, ok := p.NextPageToken(nil, records(1002), 1002)
	require.True(t, ok)
	assert.Equal(t, 1002, tok)

	tok, ok = p.NextPageToken(nil, records(1000), 1000)
	require.True(t, ok)
	assert.Equal(t, 2002, tok)

	_, ok = p.NextPageToken(nil, records(1), 1)
	assert.False(t, ok)
	assert.True(t, p.Done())

	// terminal is sticky
	_, ok = p.NextPageToken(nil, records(1000), 1000)
	assert.False(t, ok)

	p.Reset()
	assert.False(t, p.Done())
}

func TestShortPageAlwaysTerminates(t *testing.T) {
	const pageSize = 25
	for _, cfg := range []models.PaginationConfig{
		{Type: TypeOffset},
		{Type: TypePageNumber},
		{Type: TypeCursor, CursorValue: "{{ decoded_response.next }}"},
	} {
		t.Run(cfg.Type, func(t *testing.T) {
			p, err := New(cfg, pageSize, nil)
			require.NoError(t, err)
			resp := map[string]any{"next": "abc"}
			pages := []int{25, 25, 25, 3}
			var last bool
			for i, n := range pages {
				_, ok := p.NextPageToken(resp, records(n), n)
				if i < len(pages)-1 {
					assert.True(t, ok, "page %d", i)
				}
				last = ok
			}
			assert.False(t, last)
		})
	}
}

func TestEmptyPageTerminates(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypeOffset}, 10, nil)
	require.NoError(t, err)
	_, ok := p.NextPageToken(map[string]any{}, nil, 0)
	assert.False(t, ok)
}

func TestCursorStopsOnZeroItems(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypeCursor, CursorValue: "{{ decoded_response.next }}"}, 0, nil)
	require.NoError(t, err)

	// the response keeps advertising a next cursor but carries no records
	_, ok := p.NextPageToken(map[string]any{"next": "abc"}, nil, 0)
	assert.False(t, ok)
	assert.True(t, p.Done())
}

func TestPageSizeCountsEveryItem(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypeOffset}, 2, nil)
	require.NoError(t, err)

	// one of the two items was not an object; the page is still full
	tok, ok := p.NextPageToken(nil, records(1), 2)
	require.True(t, ok)
	assert.Equal(t, 2, tok)

	p2, err := New(models.PaginationConfig{Type: TypeCursor, CursorValue: "{{ decoded_response.next }}"}, 2, nil)
	require.NoError(t, err)
	tok, ok = p2.NextPageToken(map[string]any{"next": "abc"}, records(1), 2)
	require.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestPageNumber(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypePageNumber, StartFrom: 1}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "page", p.Option.FieldName)

	tok, ok := p.NextPageToken(nil, records(2), 2)
	require.True(t, ok)
	assert.Equal(t, 2, tok)
	tok, ok = p.NextPageToken(nil, records(2), 2)
	require.True(t, ok)
	assert.Equal(t, 3, tok)
}

func TestCursorFromResponse(t *testing.T) {
	p, err := New(models.PaginationConfig{
		Type:            TypeCursor,
		CursorValue:     "{{ decoded_response.paging.next }}",
		PageTokenOption: models.PageTokenOption{InjectInto: InjectPath},
	}, 0, nil)
	require.NoError(t, err)

	tok, ok := p.NextPageToken(map[string]any{"paging": map[string]any{"next": "https://api/x?page=2"}}, records(3), 3)
	require.True(t, ok)
	assert.Equal(t, "https://api/x?page=2", tok)
	cur, ok := p.Token()
	assert.True(t, ok)
	assert.Equal(t, tok, cur)

	// explicit null next cursor
	_, ok = p.NextPageToken(map[string]any{"paging": map[string]any{"next": nil}}, records(3), 3)
	assert.False(t, ok)
}

func TestCursorMissingFieldTerminates(t *testing.T) {
	p, err := New(models.PaginationConfig{Type: TypeCursor, CursorValue: "{{ decoded_response.next }}"}, 0, nil)
	require.NoError(t, err)
	_, ok := p.NextPageToken(map[string]any{}, records(5), 5)
	assert.False(t, ok)
}

func TestCursorStopCondition(t *testing.T) {
	p, err := New(models.PaginationConfig{
		Type:          TypeCursor,
		CursorValue:   "{{ last_records[-1].id }}",
		StopCondition: "{{ decoded_response.has_more == false }}",
	}, 0, map[string]any{})
	require.NoError(t, err)

	tok, ok := p.NextPageToken(map[string]any{"has_more": true}, records(3), 3)
	require.True(t, ok)
	assert.Equal(t, 2, tok)

	_, ok = p.NextPageToken(map[string]any{"has_more": false}, records(3), 3)
	assert.False(t, ok)
}

func TestConfigErrors(t *testing.T) {
	cases := []struct {
		cfg      models.PaginationConfig
		pageSize int
	}{
		{models.PaginationConfig{Type: "bogus"}, 10},
		{models.PaginationConfig{Type: TypeOffset}, 0},
		{models.PaginationConfig{Type: TypeCursor}, 0},
		{models.PaginationConfig{Type: TypeCursor, CursorValue: "{{ nope.x }}"}, 0},
		{models.PaginationConfig{Type: TypeOffset, PageTokenOption: models.PageTokenOption{InjectInto: "body"}}, 10},
	}
	for _, tc := range cases {
		_, err := New(tc.cfg, tc.pageSize, nil)
		require.Error(t, err)
		var ce *expr.ConfigError
		assert.True(t, errors.As(err, &ce), "%+v", tc.cfg)
	}
}

func TestNoneSinglePage(t *testing.T) {
	p, err := New(models.PaginationConfig{}, 0, nil)
	require.NoError(t, err)
	_, ok := p.NextPageToken(nil, records(100), 100)
	assert.False(t, ok)
	assert.True(t, p.Done())
}
