package expr

// Context names an expression may reference.
const (
	CtxConfig          = "config"
	CtxLastRecords     = "last_records"
	CtxDecodedResponse = "decoded_response"
	CtxStreamState     = "stream_state"
	CtxRecord          = "record"
	CtxNextPageToken   = "next_page_token"
	CtxStreamSlice     = "stream_slice"
)

var contextNames = map[string]bool{
	CtxConfig:          true,
	CtxLastRecords:     true,
	CtxDecodedResponse: true,
	CtxStreamState:     true,
	CtxRecord:          true,
	CtxNextPageToken:   true,
	CtxStreamSlice:     true,
}

// Context is the bundle of values an expression is evaluated against.
// A nil member is an absent context.
type Context struct {
	Config          map[string]any
	LastRecords     []map[string]any
	DecodedResponse any
	StreamState     map[string]any
	Record          map[string]any
	NextPageToken   any
	StreamSlice     map[string]any
}

func (c *Context) root(name string) (any, bool) {
	switch name {
	case CtxConfig:
		return mapRoot(c.Config)
	case CtxLastRecords:
		if c.LastRecords == nil {
			return nil, false
		}
		out := make([]any, len(c.LastRecords))
		for i, r := range c.LastRecords {
			out[i] = r
		}
		return out, true
	case CtxDecodedResponse:
		return c.DecodedResponse, c.DecodedResponse != nil
	case CtxStreamState:
		return mapRoot(c.StreamState)
	case CtxRecord:
		return mapRoot(c.Record)
	case CtxNextPageToken:
		return c.NextPageToken, c.NextPageToken != nil
	case CtxStreamSlice:
		return mapRoot(c.StreamSlice)
	}
	return nil, false
}

func mapRoot(m map[string]any) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m, true
}
