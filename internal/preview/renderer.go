package preview

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stagebox/service/internal/pending"
)

// DefaultWindow is the debounce window applied between a mutation and the
// render that reflects it.
const DefaultWindow = 100 * time.Millisecond

// View is the surface nodes are rendered onto. Calls are serialized by the
// Renderer; implementations must not call back into the Renderer from them.
type View interface {
	// Mount adds a node. Its position is set by the next Arrange.
	Mount(n *Node)
	// Unmount drops the node with the given ID.
	Unmount(id string)
	// Fill delivers a visual that was produced asynchronously.
	Fill(id string, v Visual)
	// Arrange sets the order of the mounted nodes.
	Arrange(ids []string)
	// SetCommitEnabled toggles the commit control.
	SetCommitEnabled(enabled bool)
}

// Options configures a Renderer.
type Options struct {
	Window time.Duration
	Decode ImageDecoder
	Logger *log.Logger
}

type entry struct {
	cancel context.CancelFunc
}

// Renderer keeps a View in step with a pending.Set. Rendering is incremental
// and keyed by item ID: unchanged items are never re-mounted or re-decoded.
type Renderer struct {
	set      *pending.Set
	view     View
	decode   ImageDecoder
	logger   *log.Logger
	debounce *Debouncer

	mu      sync.Mutex
	entries map[string]*entry
	renders int
	closed  bool
	decodes sync.WaitGroup
}

// NewRenderer creates a Renderer and subscribes it to changes of set.
func NewRenderer(set *pending.Set, view View, opts Options) *Renderer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Decode == nil {
		opts.Decode = DataURI
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	r := &Renderer{
		set:     set,
		view:    view,
		decode:  opts.Decode,
		logger:  opts.Logger.WithPrefix("preview"),
		entries: make(map[string]*entry),
	}
	r.debounce = NewDebouncer(opts.Window, r.Render)
	set.OnChange(r.Schedule)
	return r
}

// Schedule requests a render once the debounce window has passed without
// further requests.
func (r *Renderer) Schedule() {
	r.debounce.Trigger()
}

// Flush runs a scheduled render now instead of waiting out the window.
func (r *Renderer) Flush() {
	r.debounce.Flush()
}

// Render reconciles the view with the set's current contents.
func (r *Renderer) Render() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	// read under mu so the last render to run always sees the latest state
	items := r.set.Items()
	r.renders++

	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.ID] = struct{}{}
	}
	for id, e := range r.entries {
		if _, ok := present[id]; ok {
			continue
		}
		e.cancel()
		delete(r.entries, id)
		r.view.Unmount(id)
	}

	order := make([]string, 0, len(items))
	mounted := 0
	for _, it := range items {
		order = append(order, it.ID)
		if _, ok := r.entries[it.ID]; ok {
			continue
		}
		r.mountLocked(it)
		mounted++
	}
	r.view.Arrange(order)
	r.view.SetCommitEnabled(len(items) > 0)

	r.logger.Debug("render", "items", len(items), "mounted", mounted)
}

// Renders returns the number of renders executed so far.
func (r *Renderer) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// Wait blocks until every in-flight image decode has finished or been
// abandoned.
func (r *Renderer) Wait() {
	r.decodes.Wait()
}

// Close stops pending renders and cancels in-flight decodes.
func (r *Renderer) Close() {
	r.debounce.Stop()

	r.mu.Lock()
	r.closed = true
	for _, e := range r.entries {
		e.cancel()
	}
	r.mu.Unlock()

	r.decodes.Wait()
}

func (r *Renderer) mountLocked(it pending.Item) {
	id := it.ID
	n := &Node{
		ID:   id,
		Name: it.Name,
		Kind: it.Kind,
		Size: it.Size(),
		remove: func() error {
			_, err := r.set.Remove(id)
			return err
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.entries[id] = &entry{cancel: cancel}

	switch it.Kind {
	case pending.KindImage:
		r.decodes.Add(1)
		go r.decodeImage(ctx, it)
	case pending.KindVideo:
		n.Visual = videoVisual(it)
	default:
		n.Visual = TextVisual{Text: it.Name}
	}
	r.view.Mount(n)
}

func (r *Renderer) decodeImage(ctx context.Context, it pending.Item) {
	defer r.decodes.Done()

	var v Visual
	uri, err := r.decode(ctx, it)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("image decode failed, showing name", "name", it.Name, "err", err)
		v = TextVisual{Text: it.Name}
	} else {
		v = ImageVisual{DataURI: uri}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// the item may have been removed while decoding
	if ctx.Err() != nil || r.closed {
		return
	}
	if _, ok := r.entries[it.ID]; !ok {
		return
	}
	r.view.Fill(it.ID, v)
}
