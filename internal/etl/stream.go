package etl

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/BartekS5/restsync/internal/decoder"
	"github.com/BartekS5/restsync/internal/expr"
	"github.com/BartekS5/restsync/internal/paginate"
	"github.com/BartekS5/restsync/internal/transport"
	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/BartekS5/restsync/pkg/models"
	"github.com/BartekS5/restsync/pkg/utils"
)

// Phase is where a stream is in its page loop.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseRequesting    Phase = "requesting"
	PhaseDecoding      Phase = "decoding"
	PhaseExtracting    Phase = "extracting"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseTerminal      Phase = "terminal"
)

// Checkpointer receives a stream's cursor whenever the driver checkpoints.
// *Aggregator implements it.
type Checkpointer interface {
	Emit(stream string, state models.StreamState) models.CheckpointMessage
}

// StreamOptions tune one stream run.
type StreamOptions struct {
	// Now is the sync's snapshot time, the fixed upper bound of the incremental window.
	Now time.Time
	// Checkpointer, when set, gets a checkpoint every CheckpointEvery pages and once at the end.
	Checkpointer Checkpointer
	// CheckpointEvery overrides the definition's checkpoint_interval when positive.
	CheckpointEvery int
}

// Stats counts what a stream did.
type Stats struct {
	Pages         int
	Records       int
	Filtered      int
	Failed        int
	MissingCursor int
}

// Page is one fully extracted page.
type Page struct {
	Number   int
	Request  *transport.Request
	Decoded  any
	Records  []models.Record
	Filtered int
	Failed   int

	max    any
	hasMax bool
	all    []models.Record
	// items counts every container entry, objects or not.
	items int
}

// Stream drives one stream from its first request to exhaustion.
// A Stream is run once and is not safe for concurrent use.
type Stream struct {
	def       *StreamDefinition
	transport transport.Transport
	opts      StreamOptions

	state  models.StreamState
	lower  any
	hasLow bool
	upper  string

	phase   Phase
	started bool
	stats   Stats
}

// NewStream prepares a run of def. prior is the persisted state of this stream,
// ignored in full_refresh mode.
func NewStream(def *StreamDefinition, t transport.Transport, prior models.StreamState, opts StreamOptions) *Stream {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = def.CheckpointEvery
	}
	def.Paginator.Reset()

	s := &Stream{def: def, transport: t, opts: opts, phase: PhaseIdle, state: models.StreamState{}}
	if def.SyncMode == models.SyncModeIncremental {
		s.state = prior.Clone()
		if s.state == nil {
			s.state = models.StreamState{}
		}
	} else if len(prior) > 0 {
		logger.Infof("stream=%s full_refresh: ignoring prior state %v", def.Name, prior)
	}

	if def.Incremental() {
		if v, ok := s.state[def.StateKey]; ok && v != nil {
			s.lower, s.hasLow = v, true
		} else if def.StartValue != nil {
			if v, ok := def.StartValue.Eval(expr.Context{Config: def.Config}); ok && v != nil && v != "" {
				s.lower, s.hasLow = v, true
			}
		}
		s.upper = opts.Now.Format(def.DatetimeFormat)
	}
	return s
}

func (s *Stream) Name() string { return s.def.Name }

// Phase returns the current phase.
func (s *Stream) Phase() Phase { return s.phase }

// Stats returns the counters so far.
func (s *Stream) Stats() Stats { return s.stats }

// State returns a copy of the stream's cursor state.
func (s *Stream) State() models.StreamState { return s.state.Clone() }

// Cursor returns the current cursor value, absent until a record advanced it
// or a prior state supplied it.
func (s *Stream) Cursor() (any, bool) {
	if !s.def.Incremental() {
		return nil, false
	}
	v, ok := s.state[s.def.StateKey]
	return v, ok
}

// Window returns the request window bounds. lower is absent without prior state or start value.
func (s *Stream) Window() (lower any, hasLower bool, upper string) {
	return s.lower, s.hasLow, s.upper
}

// Records yields every record of every page. Breaking out of the loop stops the
// stream without advancing the cursor past the last fully consumed page.
func (s *Stream) Records(ctx context.Context) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		for page, err := range s.Pages(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Pages yields one extracted page at a time. The cursor advances only after the
// consumer accepted the page, i.e. yield returned true. Any error ends the sequence.
func (s *Stream) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		if s.started {
			yield(nil, ErrStreamTerminal)
			return
		}
		s.started = true
		defer s.finish()

		logger.Infof("stream=%s starting sync (mode=%s, state=%v)", s.def.Name, s.def.SyncMode, s.state)
		var token any
		for n := 1; ; n++ {
			if err := ctx.Err(); err != nil {
				logger.Warnf("stream=%s cancelled before page %d", s.def.Name, n)
				yield(nil, s.fail(n, err))
				return
			}

			page, err := s.fetch(ctx, n, token)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				logger.Infof("stream=%s consumer stopped at page %d; cursor stays at %v", s.def.Name, n, s.state)
				return
			}

			s.phase = PhaseCheckpointing
			s.advance(page)
			if s.opts.Checkpointer != nil && s.opts.CheckpointEvery > 0 && n%s.opts.CheckpointEvery == 0 {
				s.opts.Checkpointer.Emit(s.def.Name, s.State())
			}

			next, ok := s.def.Paginator.NextPageToken(page.Decoded, page.all, page.items)
			if !ok {
				logger.Infof("stream=%s finished: %d pages, %d records, %d filtered, %d failed",
					s.def.Name, s.stats.Pages, s.stats.Records, s.stats.Filtered, s.stats.Failed)
				return
			}
			logger.Debugf("stream=%s next page token %v", s.def.Name, next)
			token = next
		}
	}
}

func (s *Stream) finish() {
	s.phase = PhaseTerminal
	if s.opts.Checkpointer != nil {
		s.opts.Checkpointer.Emit(s.def.Name, s.State())
	}
}

func (s *Stream) fail(page int, err error) error {
	return &StreamError{Stream: s.def.Name, Phase: s.phase, Page: page, Err: err}
}

// fetch runs Requesting, Decoding and Extracting for one page.
func (s *Stream) fetch(ctx context.Context, n int, token any) (*Page, error) {
	s.phase = PhaseRequesting
	req, err := s.buildRequest(token)
	if err != nil {
		return nil, s.fail(n, err)
	}
	logger.Debugf("stream=%s page %d: %s %s %v", s.def.Name, n, req.Method, req.URL, req.Params)
	resp, err := s.transport.Send(ctx, req)
	if err != nil {
		logger.Errorf("stream=%s page %d request failed: %v", s.def.Name, n, err)
		return nil, s.fail(n, err)
	}

	s.phase = PhaseDecoding
	var decoded any
	if ctd, ok := s.def.Decoder.(decoder.ContentTypeDecoder); ok {
		decoded, err = ctd.DecodeContentType(resp.Body, resp.ContentType())
	} else {
		decoded, err = s.def.Decoder.Decode(resp.Body)
	}
	if err != nil {
		logger.Errorf("stream=%s page %d: %v", s.def.Name, n, err)
		return nil, s.fail(n, err)
	}

	s.phase = PhaseExtracting
	items, err := s.extract(decoded)
	if err != nil {
		logger.Errorf("stream=%s page %d: %v", s.def.Name, n, err)
		return nil, s.fail(n, err)
	}

	page := &Page{Number: n, Request: req, Decoded: decoded, items: len(items)}
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			page.Failed++
			logger.Warnf("stream=%s page %d: item %d is %T, not an object", s.def.Name, n, i, item)
			continue
		}
		page.all = append(page.all, rec)
		if !s.def.Incremental() {
			page.Records = append(page.Records, rec)
			continue
		}
		v, ok := s.def.Cursor.Eval(expr.Context{Config: s.def.Config, Record: rec})
		if !ok || v == nil {
			s.stats.MissingCursor++
			page.Records = append(page.Records, rec)
			continue
		}
		if !s.inWindow(v) {
			page.Filtered++
			continue
		}
		page.Records = append(page.Records, rec)
		if !page.hasMax || utils.CompareCursor(v, page.max) > 0 {
			page.max, page.hasMax = v, true
		}
	}
	if page.Filtered > 0 {
		logger.Infof("stream=%s page %d: %d records outside window [%v, %s]", s.def.Name, n, page.Filtered, s.lower, s.upper)
	}
	return page, nil
}

func (s *Stream) extract(decoded any) ([]any, error) {
	v, ok := s.def.RecordPath.Eval(expr.Context{Config: s.def.Config, DecodedResponse: decoded})
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if s.def.wholeResponse {
			return []any{t}, nil
		}
	}
	return nil, &ExtractionError{Path: s.def.RecordPath.String(), Got: fmt.Sprintf("%T", v)}
}

func (s *Stream) inWindow(v any) bool {
	if s.hasLow && utils.CompareCursor(v, s.lower) < 0 {
		return false
	}
	if t, err := utils.ConvertDateTime(v); err == nil && !t.Before(s.opts.Now) {
		return false
	}
	return true
}

// advance moves the cursor to the page maximum if it is ahead of the current value.
func (s *Stream) advance(p *Page) {
	s.stats.Pages++
	s.stats.Records += len(p.Records)
	s.stats.Filtered += p.Filtered
	s.stats.Failed += p.Failed
	if !p.hasMax {
		return
	}
	cur, ok := s.state[s.def.StateKey]
	if !ok || cur == nil || utils.CompareCursor(p.max, cur) > 0 {
		s.state[s.def.StateKey] = p.max
	}
}

func (s *Stream) context(token any) expr.Context {
	slice := map[string]any{"end_time": s.upper}
	if s.hasLow {
		slice["start_time"] = s.lower
	}
	return expr.Context{
		Config:        s.def.Config,
		StreamState:   s.state,
		StreamSlice:   slice,
		NextPageToken: token,
	}
}

func (s *Stream) buildRequest(token any) (*transport.Request, error) {
	c := s.context(token)
	req := &transport.Request{
		Method:  s.def.Method,
		Params:  map[string]string{},
		Headers: map[string]string{},
	}
	u, ok := s.def.URL.EvalString(c)
	if !ok || u == "" {
		return nil, fmt.Errorf("url %q evaluated to nothing", s.def.URL)
	}
	req.URL = u

	for k, e := range s.def.Params {
		if v, ok := e.EvalString(c); ok {
			req.Params[k] = v
		}
	}
	for k, e := range s.def.Headers {
		if v, ok := e.EvalString(c); ok {
			req.Headers[k] = v
		}
	}
	if s.def.PageSizeParam != "" {
		req.Params[s.def.PageSizeParam] = strconv.Itoa(s.def.PageSize)
	}
	if s.def.Incremental() {
		if s.def.StartField != "" && s.hasLow {
			req.Params[s.def.StartField] = utils.Stringify(s.lower)
		}
		if s.def.EndField != "" {
			req.Params[s.def.EndField] = s.upper
		}
	}

	if token == nil {
		return req, nil
	}
	opt := s.def.Paginator.Option
	switch opt.InjectInto {
	case paginate.InjectHeader:
		req.Headers[opt.FieldName] = utils.Stringify(token)
	case paginate.InjectPath:
		next, err := resolveURL(u, utils.Stringify(token))
		if err != nil {
			return nil, err
		}
		// the next url carries its own paging parameters
		for k := range next.Query() {
			delete(req.Params, k)
		}
		req.URL = next.String()
	default:
		req.Params[opt.FieldName] = utils.Stringify(token)
	}
	return req, nil
}

func resolveURL(base, next string) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("request url %q: %w", base, err)
	}
	n, err := url.Parse(next)
	if err != nil {
		return nil, fmt.Errorf("next page url %q: %w", next, err)
	}
	return b.ResolveReference(n), nil
}

// IsRetryable reports whether err came from a transport failure classified retryable.
func IsRetryable(err error) bool {
	var te *transport.Error
	return errors.As(err, &te) && te.Retryable
}
