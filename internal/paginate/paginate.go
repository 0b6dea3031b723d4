// Package paginate decides after every page whether, and with which token, the
// next page is requested.
package paginate

import (
	"strings"

	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/pkg/models"
)

// Strategy variants.
const (
	TypeNone       = "none"
	TypeOffset     = "offset"
	TypePageNumber = "page_number"
	TypeCursor     = "cursor"
)

// Token injection targets.
const (
	InjectRequestParameter = "request_parameter"
	InjectHeader           = "header"
	InjectPath             = "path"
)

// Strategy is a small state machine over {current token, terminal flag}.
type Strategy interface {
	// NextPageToken consumes one page and returns the token for the next one.
	// lastRecords are the page's object records; items is how many entries the
	// records container held, objects or not, and drives page-size arithmetic.
	// A page with zero items ends pagination. ok=false means pagination is over;
	// every later call returns false too.
	NextPageToken(decodedResponse any, lastRecords []models.Record, items int) (token any, ok bool)
	// Token returns the current token, absent before the first page.
	Token() (any, bool)
	// Done reports whether the terminal state was reached.
	Done() bool
	// Reset returns the strategy to its initial state.
	Reset()
}

// Paginator couples a strategy with where its token goes in the request.
type Paginator struct {
	Strategy
	Option models.PageTokenOption
}

// New builds the paginator declared by cfg. It is called once when a stream
// definition is compiled; an unknown type or bad expression is a ConfigError.
func New(cfg models.PaginationConfig, pageSize int, config map[string]any) (*Paginator, error) {
	opt := cfg.PageTokenOption
	if opt.InjectInto == "" {
		opt.InjectInto = InjectRequestParameter
	}
	switch opt.InjectInto {
	case InjectRequestParameter, InjectHeader:
		if opt.FieldName == "" && strings.ToLower(cfg.Type) != TypeNone && cfg.Type != "" {
			opt.FieldName = defaultFieldName(cfg.Type)
		}
	case InjectPath:
	default:
		return nil, expr.Errorf("pagination.page_token_option.inject_into", "unsupported target %q", opt.InjectInto)
	}
	if pageSize < 0 {
		return nil, expr.Errorf("page_size", "must not be negative")
	}

	var s Strategy
	switch strings.ToLower(cfg.Type) {
	case "", TypeNone:
		s = &None{}
	case TypeOffset:
		if pageSize == 0 {
			return nil, expr.Errorf("page_size", "required for offset pagination")
		}
		s = &Offset{PageSize: pageSize}
	case TypePageNumber:
		if pageSize == 0 {
			return nil, expr.Errorf("page_size", "required for page_number pagination")
		}
		start := cfg.StartFrom
		if start == 0 {
			start = 1
		}
		s = &PageNumber{PageSize: pageSize, StartFrom: start}
	case TypeCursor:
		c, err := NewCursor(cfg.CursorValue, cfg.StopCondition, pageSize, config)
		if err != nil {
			return nil, err
		}
		s = c
	default:
		return nil, expr.Errorf("pagination.type", "unsupported pagination type %q", cfg.Type)
	}
	return &Paginator{Strategy: s, Option: opt}, nil
}

func defaultFieldName(typ string) string {
	switch strings.ToLower(typ) {
	case TypeOffset:
		return "offset"
	case TypePageNumber:
		return "page"
	default:
		return "cursor"
	}
}

// None fetches a single page.
type None struct {
	done bool
}

func (n *None) NextPageToken(any, []models.Record, int) (any, bool) {
	n.done = true
	return nil, false
}

func (n *None) Token() (any, bool) { return nil, false }
func (n *None) Done() bool         { return n.done }
func (n *None) Reset()             { n.done = false }

// Offset pages by item count. The next token is the prior offset plus the
// number of items on the page, so APIs that echo no cursor still page.
type Offset struct {
	PageSize int

	offset  int
	started bool
	done    bool
}

func (o *Offset) NextPageToken(_ any, _ []models.Record, items int) (any, bool) {
	if o.done {
		return nil, false
	}
	if items == 0 || items < o.PageSize {
		o.done = true
		return nil, false
	}
	o.offset += items
	o.started = true
	return o.offset, true
}

func (o *Offset) Token() (any, bool) {
	if !o.started || o.done {
		return nil, false
	}
	return o.offset, true
}

func (o *Offset) Done() bool { return o.done }

func (o *Offset) Reset() {
	o.offset, o.started, o.done = 0, false, false
}

// PageNumber increments a page counter while pages come back full.
type PageNumber struct {
	PageSize  int
	StartFrom int

	page    int
	started bool
	done    bool
}

func (p *PageNumber) NextPageToken(_ any, _ []models.Record, items int) (any, bool) {
	if p.done {
		return nil, false
	}
	if items == 0 || items < p.PageSize {
		p.done = true
		return nil, false
	}
	if !p.started {
		p.page = p.StartFrom
		p.started = true
	}
	p.page++
	return p.page, true
}

func (p *PageNumber) Token() (any, bool) {
	if !p.started || p.done {
		return nil, false
	}
	return p.page, true
}

func (p *PageNumber) Done() bool { return p.done }

func (p *PageNumber) Reset() {
	p.page, p.started, p.done = 0, false, false
}
