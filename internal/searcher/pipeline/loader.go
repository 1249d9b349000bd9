package pipeline

// DocumentStore is the out-of-scope document-store collaborator spec.md §1
// names: the Loader stage consumes it but never implements it (it belongs
// to the ingestion/storage layer, not the query engine core).
type DocumentStore interface {
	// LoadFields returns the requested fields for docKey. A nil/empty
	// fields slice means "load everything".
	LoadFields(docKey string, fields []string) (map[string]any, error)
}

// Loader fetches designated fields from the document store for each result,
// spec.md §4.8's 6th standard processor.
type Loader struct {
	upstream Processor
	store    DocumentStore
	lookup   *LookupTable
	fields   []string
	logger   func(docKey string, err error)
}

// NewLoader wraps upstream, fetching fields (nil/empty = all) from store for
// every result and writing them into the result's Row via lookup. onError,
// if non-nil, is called for a per-document load failure; the row is simply
// left unpopulated for that result (async-disk failures drop silently per
// spec.md §7, and a document-store miss is treated the same way here).
func NewLoader(upstream Processor, store DocumentStore, lookup *LookupTable, fields []string, onError func(docKey string, err error)) *Loader {
	return &Loader{upstream: upstream, store: store, lookup: lookup, fields: fields, logger: onError}
}

func (l *Loader) Next(ctx *QueryContext) (Status, *SearchResult) {
	if st := ctx.CheckDeadline(); st != StatusOK {
		return st, nil
	}
	status, res := l.upstream.Next(ctx)
	if status != StatusOK {
		return status, res
	}
	fields, err := l.store.LoadFields(res.DocKey, l.fields)
	if err != nil {
		if l.logger != nil {
			l.logger(res.DocKey, err)
		}
		return StatusOK, res
	}
	for name, v := range fields {
		res.Row.SetByName(l.lookup, name, v)
	}
	return StatusOK, res
}

func (l *Loader) Free() { l.upstream.Free() }
