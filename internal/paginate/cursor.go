package paginate

import (
	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/pkg/models"
)

// Cursor takes the next token from the response, e.g. a next-cursor field or a next URL.
type Cursor struct {
	cursorValue   *expr.Expression
	stopCondition *expr.Expression
	pageSize      int
	config        map[string]any

	token any
	done  bool
}

// NewCursor compiles the cursor and the optional stop condition.
func NewCursor(cursorValue, stopCondition string, pageSize int, config map[string]any) (*Cursor, error) {
	if cursorValue == "" {
		return nil, expr.Errorf("pagination.cursor_value", "required for cursor pagination")
	}
	cv, err := expr.Parse(cursorValue)
	if err != nil {
		return nil, expr.WithField(err, "pagination.cursor_value")
	}
	c := &Cursor{cursorValue: cv, pageSize: pageSize, config: config}
	if stopCondition != "" {
		sc, err := expr.Parse(stopCondition)
		if err != nil {
			return nil, expr.WithField(err, "pagination.stop_condition")
		}
		c.stopCondition = sc
	}
	return c, nil
}

func (c *Cursor) NextPageToken(decodedResponse any, lastRecords []models.Record, items int) (any, bool) {
	if c.done {
		return nil, false
	}
	if items == 0 {
		return c.stop()
	}
	if lastRecords == nil {
		lastRecords = []models.Record{}
	}
	ctx := expr.Context{
		Config:          c.config,
		LastRecords:     lastRecords,
		DecodedResponse: decodedResponse,
	}
	if c.pageSize > 0 && items < c.pageSize {
		return c.stop()
	}
	if c.stopCondition != nil {
		if v, ok := c.stopCondition.Eval(ctx); ok && expr.Truthy(v) {
			return c.stop()
		}
	}
	v, ok := c.cursorValue.Eval(ctx)
	if !ok || v == nil {
		return c.stop()
	}
	if s, isStr := v.(string); isStr && s == "" {
		return c.stop()
	}
	c.token = v
	return v, true
}

func (c *Cursor) stop() (any, bool) {
	c.done = true
	c.token = nil
	return nil, false
}

func (c *Cursor) Token() (any, bool) { return c.token, c.token != nil }
func (c *Cursor) Done() bool         { return c.done }

func (c *Cursor) Reset() {
	c.token, c.done = nil, false
}
