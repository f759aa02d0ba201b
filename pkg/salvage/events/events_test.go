package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "info", KindInfo.String())
	assert.Equal(t, "progress", KindProgress.String())
	assert.Equal(t, "warning", KindWarning.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestEmitterDeliversToAllObservers(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	e := NewEmitter(a, b)

	e.Info("/tmp/x", "scanning %d files", 3)
	e.Warn("", "skipped")

	for _, r := range []*Recorder{a, b} {
		got := r.Events()
		require.Len(t, got, 2)
		assert.Equal(t, KindInfo, got[0].Kind)
		assert.Equal(t, "scanning 3 files", got[0].Message)
		assert.Equal(t, "/tmp/x", got[0].Path)
		assert.False(t, got[0].Time.IsZero())
		assert.Equal(t, KindWarning, got[1].Kind)
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	r := &Recorder{}
	e := NewEmitter()
	id := e.Subscribe(r)
	require.NotEmpty(t, id)

	e.Error("", "first")
	e.Unsubscribe(id)
	e.Error("", "second")

	assert.Len(t, r.Events(), 1)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.Info("", "ignored")
		e.Progress("", "ignored")
		e.Unsubscribe("x")
		assert.Empty(t, e.Subscribe(&Recorder{}))
	})
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	r := &Recorder{}
	msg := "100% done"
	NewEmitter(r).Info("", msg)
	assert.Equal(t, "100% done", r.Events()[0].Message)
}

func TestObserverFunc(t *testing.T) {
	var got Event
	e := NewEmitter(ObserverFunc(func(ev Event) { got = ev }))
	e.Progress("/a", "step")
	assert.Equal(t, KindProgress, got.Kind)
}

func TestChannelDropsWhenFull(t *testing.T) {
	c := NewChannel(1)
	e := NewEmitter(c)
	e.Info("", "one")
	e.Info("", "two")

	require.Len(t, c.C, 1)
	assert.Equal(t, "one", (<-c.C).Message)
}

func TestRecorderConcurrentUse(t *testing.T) {
	r := &Recorder{}
	e := NewEmitter(r)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Progress("", "tick")
		}()
	}
	wg.Wait()

	assert.Len(t, r.OfKind(KindProgress), 50)
	assert.Empty(t, r.OfKind(KindError))
}

func TestLogObserverDoesNotPanicBeforeInit(t *testing.T) {
	o := NewLogObserver("test")
	assert.NotPanics(t, func() {
		o.Notify(Event{Kind: KindWarning, Message: "w", Path: "/p"})
		o.Notify(Event{Kind: KindProgress, Message: "p"})
	})
}
