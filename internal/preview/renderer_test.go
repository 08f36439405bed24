package preview

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebox/service/internal/pending"
)

type recordView struct {
	mu       sync.Mutex
	nodes    map[string]*Node
	visuals  map[string]Visual
	order    []string
	mounts   int
	fills    []string
	unmounts []string
	enabled  bool
}

func newRecordView() *recordView {
	return &recordView{nodes: map[string]*Node{}, visuals: map[string]Visual{}}
}

func (v *recordView) Mount(n *Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mounts++
	v.nodes[n.ID] = n
	if n.Visual != nil {
		v.visuals[n.ID] = n.Visual
	}
}

func (v *recordView) Unmount(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unmounts = append(v.unmounts, id)
	delete(v.nodes, id)
	delete(v.visuals, id)
}

func (v *recordView) Fill(id string, vis Visual) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fills = append(v.fills, id)
	v.visuals[id] = vis
}

func (v *recordView) Arrange(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = append([]string(nil), ids...)
}

func (v *recordView) SetCommitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = enabled
}

func (v *recordView) snapshot() (mounts int, order []string, enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounts, append([]string(nil), v.order...), v.enabled
}

func (v *recordView) visual(id string) Visual {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visuals[id]
}

func (v *recordView) node(id string) *Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nodes[id]
}

func quietLogger() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

// newManual returns a renderer whose debounce window never elapses during a
// test, so renders only happen through Render or Flush.
func newManual(t *testing.T, set *pending.Set, view View, decode ImageDecoder) *Renderer {
	t.Helper()
	r := NewRenderer(set, view, Options{Window: time.Hour, Decode: decode, Logger: quietLogger()})
	t.Cleanup(r.Close)
	return r
}

func image(name string) pending.Item {
	return pending.Item{Name: name, MIMEType: "image/png", Content: []byte(name)}
}

func TestRenderCoalescesRapidMutations(t *testing.T) {
	set := pending.NewSet()
	view := newRecordView()
	r := NewRenderer(set, view, Options{Window: 40 * time.Millisecond, Logger: quietLogger()})
	defer r.Close()

	for i := 0; i < 50; i++ {
		set.Add(pending.Item{Name: "f", MIMEType: "text/plain"})
	}

	require.Eventually(t, func() bool { return r.Renders() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, r.Renders())

	mounts, order, enabled := view.snapshot()
	assert.Equal(t, 50, mounts)
	assert.Len(t, order, 50)
	assert.True(t, enabled)
}

func TestRenderIsIdempotent(t *testing.T) {
	var decodes atomic.Int32
	decode := func(ctx context.Context, it pending.Item) (string, error) {
		decodes.Add(1)
		return DataURI(ctx, it)
	}

	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, decode)
	set.Add(image("a.png"), pending.Item{Name: "b.txt", MIMEType: "text/plain"})

	r.Render()
	r.Wait()
	r.Render()
	r.Render()
	r.Wait()

	mounts, order, _ := view.snapshot()
	assert.Equal(t, 2, mounts)
	assert.Len(t, order, 2)
	assert.Equal(t, int32(1), decodes.Load())
}

func TestImagesLandInTheirOwnSlot(t *testing.T) {
	release := map[string]chan struct{}{
		"a.png": make(chan struct{}),
		"b.png": make(chan struct{}),
		"c.png": make(chan struct{}),
	}
	decode := func(ctx context.Context, it pending.Item) (string, error) {
		<-release[it.Name]
		return "uri:" + it.Name, nil
	}

	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, decode)
	staged := set.Add(image("a.png"), image("b.png"), image("c.png"))
	r.Render()

	for _, name := range []string{"c.png", "a.png", "b.png"} {
		close(release[name])
	}
	r.Wait()

	for _, it := range staged {
		assert.Equal(t, ImageVisual{DataURI: "uri:" + it.Name}, view.visual(it.ID))
	}
	_, order, _ := view.snapshot()
	assert.Equal(t, []string{staged[0].ID, staged[1].ID, staged[2].ID}, order)
}

func TestRemovalDuringDecodeDropsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	decode := func(ctx context.Context, it pending.Item) (string, error) {
		close(started)
		<-release
		return "uri", nil
	}

	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, decode)
	staged := set.Add(image("slow.png"))
	r.Render()
	<-started

	_, err := set.Remove(staged[0].ID)
	require.NoError(t, err)
	r.Render()
	close(release)
	r.Wait()

	assert.Empty(t, view.fills)
	assert.Nil(t, view.node(staged[0].ID))
	_, _, enabled := view.snapshot()
	assert.False(t, enabled)
}

func TestRemoveAffordanceTracksCurrentPosition(t *testing.T) {
	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, nil)
	staged := set.Add(
		pending.Item{Name: "a", MIMEType: "text/plain"},
		pending.Item{Name: "b", MIMEType: "text/plain"},
		pending.Item{Name: "c", MIMEType: "text/plain"},
	)
	r.Render()

	require.NoError(t, view.node(staged[0].ID).Remove())
	r.Flush()
	require.NoError(t, view.node(staged[2].ID).Remove())
	r.Flush()

	items := set.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Name)
	_, order, _ := view.snapshot()
	assert.Equal(t, []string{staged[1].ID}, order)
}

func TestVisualsByKind(t *testing.T) {
	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, nil)
	staged := set.Add(
		pending.Item{Name: "clip.mp4", MIMEType: "video/mp4", Content: []byte("....")},
		pending.Item{Name: "notes.pdf", MIMEType: "application/pdf"},
		pending.Item{Name: "dot.png", MIMEType: "image/png", Content: []byte{1, 2, 3}},
	)
	r.Render()
	r.Wait()

	video, ok := view.visual(staged[0].ID).(VideoVisual)
	require.True(t, ok)
	assert.Equal(t, SourceRef(staged[0]), video.Source)
	assert.Equal(t, video.Source, video.Poster)
	assert.Equal(t, "metadata", video.Preload)
	assert.True(t, video.Muted)

	assert.Equal(t, TextVisual{Text: "notes.pdf"}, view.visual(staged[1].ID))
	assert.Equal(t, ImageVisual{DataURI: "data:image/png;base64,AQID"}, view.visual(staged[2].ID))
}

func TestFailedDecodeFallsBackToName(t *testing.T) {
	decode := func(ctx context.Context, it pending.Item) (string, error) {
		return "", assert.AnError
	}
	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, decode)
	staged := set.Add(image("broken.png"))
	r.Render()
	r.Wait()

	assert.Equal(t, TextVisual{Text: "broken.png"}, view.visual(staged[0].ID))
}

func TestClearUnmountsEverything(t *testing.T) {
	set := pending.NewSet()
	view := newRecordView()
	r := newManual(t, set, view, nil)
	set.Add(pending.Item{Name: "a", MIMEType: "text/plain"}, pending.Item{Name: "b", MIMEType: "text/plain"})
	r.Render()

	set.Clear()
	r.Flush()

	_, order, enabled := view.snapshot()
	assert.Empty(t, order)
	assert.False(t, enabled)
	assert.Len(t, view.unmounts, 2)
}

func TestTableViewRender(t *testing.T) {
	set := pending.NewSet()
	view := NewTableView()
	r := newManual(t, set, view, nil)
	set.Add(
		pending.Item{Name: "one.txt", MIMEType: "text/plain", Content: []byte("hello")},
		pending.Item{Name: "two.mp4", MIMEType: "video/mp4"},
	)
	r.Render()

	out := view.Render()
	assert.Contains(t, out, "one.txt")
	assert.Contains(t, out, "video blob:stagebox/")
	assert.Contains(t, out, "2 file(s) ready to upload")
	assert.True(t, view.CommitEnabled())

	n, ok := view.NodeAt(1)
	require.True(t, ok)
	assert.Equal(t, "two.mp4", n.Name)
	_, ok = view.NodeAt(2)
	assert.False(t, ok)
}

// gatedView blocks the first Mount until release is closed.
type gatedView struct {
	*recordView
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (v *gatedView) Mount(n *Node) {
	v.once.Do(func() {
		close(v.entered)
		<-v.release
	})
	v.recordView.Mount(n)
}

func TestQueuedRenderSeesLatestState(t *testing.T) {
	set := pending.NewSet()
	view := &gatedView{recordView: newRecordView(), entered: make(chan struct{}), release: make(chan struct{})}
	r := newManual(t, set, view, nil)

	a := set.Add(pending.Item{Name: "a.txt", MIMEType: "text/plain"})[0]

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); r.Flush() }()
	<-view.entered

	b := set.Add(pending.Item{Name: "b.txt", MIMEType: "text/plain"})[0]
	go func() { defer wg.Done(); r.Render() }()
	time.Sleep(20 * time.Millisecond)

	_, err := set.Remove(b.ID)
	require.NoError(t, err)
	go func() { defer wg.Done(); r.Flush() }()
	time.Sleep(20 * time.Millisecond)

	close(view.release)
	wg.Wait()

	_, order, _ := view.snapshot()
	assert.Equal(t, []string{a.ID}, order)
}

func TestFlushRacesFiredTimer(t *testing.T) {
	set := pending.NewSet()
	view := newRecordView()
	r := NewRenderer(set, view, Options{Window: time.Millisecond, Logger: quietLogger()})
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		set.Add(pending.Item{Name: "f", MIMEType: "text/plain"})
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Flush()
		}()
		if i%3 == 0 {
			items := set.Items()
			_, err := set.Remove(items[0].ID)
			require.NoError(t, err)
		}
	}
	wg.Wait()

	want := func() []string {
		var ids []string
		for _, it := range set.Items() {
			ids = append(ids, it.ID)
		}
		return ids
	}()
	require.Eventually(t, func() bool {
		_, order, _ := view.snapshot()
		return assert.ObjectsAreEqual(want, order)
	}, time.Second, 5*time.Millisecond)
}
