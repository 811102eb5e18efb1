package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/probe"
	"github.com/menta2k/image-annotator/pkg/types"
)

func sampleAnnotations() []types.Annotation {
	return []types.Annotation{
		{Path: "M 0,0 1,0 1,1 Z", Label: "person", Selected: true, Color: "#a"},
		{Path: "M 0,0 2,0 2,2 Z", Label: "bicycle", Selected: true, Color: "#b"},
		{Path: "M 0,0 3,0 3,3 Z", Label: "person", Selected: true, Color: "#a"},
	}
}

func fixedProber(size types.Size) probe.Prober {
	return probe.Func(func(ctx context.Context, ref string) (types.Size, error) {
		return size, nil
	})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInitialState(t *testing.T) {
	s := New(nil)
	st := s.Snapshot()

	assert.Equal(t, types.DefaultOptions(), st.Options)
	assert.NotNil(t, st.Annotations)
	assert.NotNil(t, st.ManualAnnotations)
	assert.Empty(t, st.Annotations)
	assert.False(t, st.IsDrawing)
	assert.False(t, st.IsLoadingServerData)
}

func TestSetSelectedTouchesExactlyOne(t *testing.T) {
	s := New(nil)
	s.SetAnnotations(sampleAnnotations())

	require.NoError(t, s.SetSelected(1, false))
	st := s.Snapshot()
	assert.True(t, st.Annotations[0].Selected)
	assert.False(t, st.Annotations[1].Selected)
	assert.True(t, st.Annotations[2].Selected)

	for i, a := range sampleAnnotations() {
		got := st.Annotations[i]
		assert.Equal(t, a.Path, got.Path)
		assert.Equal(t, a.Label, got.Label)
		assert.Equal(t, a.Color, got.Color)
	}

	require.NoError(t, s.SetSelected(1, true))
	assert.Equal(t, sampleAnnotations(), s.Snapshot().Annotations)
}

func TestOutOfRangeIsNoOp(t *testing.T) {
	s := New(nil)
	s.SetAnnotations(sampleAnnotations())
	before := s.Snapshot()

	notified := 0
	s.Subscribe(func(State) { notified++ })

	assert.ErrorIs(t, s.SetSelected(3, false), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetSelected(-1, false), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetManualSelected(0, false), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.EditLabel(7, "x"), ErrIndexOutOfRange)

	assert.Equal(t, before, s.Snapshot())
	assert.Zero(t, notified)
}

func TestEditLabelOnlyServerAnnotations(t *testing.T) {
	s := New(nil)
	s.SetAnnotations(sampleAnnotations())
	s.SetManualAnnotations([]types.ManualAnnotation{{Points: []types.Point{{X: 1}, {X: 2}, {X: 3}}, Label: "manual"}})

	require.NoError(t, s.EditLabel(0, "cyclist"))
	st := s.Snapshot()
	assert.Equal(t, "cyclist", st.Annotations[0].Label)
	assert.Equal(t, "#a", st.Annotations[0].Color)
	assert.Equal(t, "manual", st.ManualAnnotations[0].Label)
}

func TestManualSelection(t *testing.T) {
	s := New(nil)
	s.SetManualAnnotations([]types.ManualAnnotation{
		{Points: []types.Point{{X: 1}, {X: 2}, {X: 3}}, Selected: true},
		{Points: []types.Point{{X: 4}, {X: 5}, {X: 6}}, Selected: true},
	})

	require.NoError(t, s.SetManualSelected(0, false))
	st := s.Snapshot()
	assert.False(t, st.ManualAnnotations[0].Selected)
	assert.True(t, st.ManualAnnotations[1].Selected)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New(nil)
	s.SetAnnotations(sampleAnnotations())
	s.SetManualAnnotations([]types.ManualAnnotation{{Points: []types.Point{{X: 1}, {X: 2}, {X: 3}}}})

	st := s.Snapshot()
	st.Annotations[0].Label = "mutated"
	st.ManualAnnotations[0].Points[0].X = 99

	fresh := s.Snapshot()
	assert.Equal(t, "person", fresh.Annotations[0].Label)
	assert.Equal(t, 1.0, fresh.ManualAnnotations[0].Points[0].X)
}

func TestClearAndClearAnnotations(t *testing.T) {
	s := New(fixedProber(types.Size{Width: 10, Height: 10}))
	_, err := s.SetImage(waitCtx(t), "img.png").Wait(waitCtx(t))
	require.NoError(t, err)
	s.SetAnnotations(sampleAnnotations())
	s.SetManualAnnotations([]types.ManualAnnotation{{Points: []types.Point{{X: 1}, {X: 2}, {X: 3}}}})
	s.ToggleEditMode()
	s.ToggleShowImageUnder()

	s.ClearAnnotations()
	st := s.Snapshot()
	assert.Empty(t, st.Annotations)
	assert.Empty(t, st.ManualAnnotations)
	assert.Equal(t, "img.png", st.ImageURL)
	assert.Equal(t, types.Options{ShowImageUnder: false, EditMode: true}, st.Options)

	s.ToggleIsDrawing()
	s.Clear()
	st = s.Snapshot()
	assert.Empty(t, st.ImageURL)
	assert.True(t, st.ImageSize.Empty())
	assert.Equal(t, types.DefaultOptions(), st.Options)
	assert.False(t, st.IsDrawing)
}

func TestToggles(t *testing.T) {
	s := New(nil)
	s.ToggleShowImageUnder()
	s.ToggleEditMode()
	s.ToggleIsDrawing()

	st := s.Snapshot()
	assert.False(t, st.Options.ShowImageUnder)
	assert.True(t, st.Options.EditMode)
	assert.True(t, st.IsDrawing)

	s.SetDrawing(false)
	assert.False(t, s.Snapshot().IsDrawing)
}

func TestSubscribe(t *testing.T) {
	s := New(nil)

	var seen []State
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st) })

	s.ToggleEditMode()
	s.SetAnnotations(sampleAnnotations())
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Options.EditMode)
	assert.Empty(t, seen[0].Annotations)
	assert.Len(t, seen[1].Annotations, 3)
	assert.Less(t, seen[0].Version, seen[1].Version)

	unsubscribe()
	unsubscribe()
	s.ToggleEditMode()
	assert.Len(t, seen, 2)
}

func TestUpdateDrawingNotifiesOnce(t *testing.T) {
	s := New(nil)

	var seen []State
	s.Subscribe(func(st State) { seen = append(seen, st) })

	s.UpdateDrawing(true, func(manual []types.ManualAnnotation) []types.ManualAnnotation {
		return append(manual, types.ManualAnnotation{Points: []types.Point{{X: 1, Y: 1}}, Label: "manual"})
	})
	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsDrawing)
	assert.Len(t, seen[0].ManualAnnotations, 1)

	s.UpdateDrawing(false, func(manual []types.ManualAnnotation) []types.ManualAnnotation {
		return manual[:0]
	})
	require.Len(t, seen, 2)
	assert.False(t, seen[1].IsDrawing)
	assert.Empty(t, seen[1].ManualAnnotations)
}

func TestSubscriberMayMutate(t *testing.T) {
	s := New(nil)
	s.Subscribe(func(st State) {
		if st.Options.EditMode && !st.IsDrawing {
			s.SetDrawing(true)
		}
	})

	s.ToggleEditMode()
	assert.True(t, s.Snapshot().IsDrawing)
}

func TestBeginLoadingRejectsWhilePending(t *testing.T) {
	s := New(nil)
	assert.True(t, s.BeginLoading())
	assert.False(t, s.BeginLoading())
	assert.True(t, s.Snapshot().IsLoadingServerData)

	s.SetLoading(false)
	assert.True(t, s.BeginLoading())
}

func TestCompleteLoading(t *testing.T) {
	s := New(fixedProber(types.Size{Width: 1, Height: 1}))
	s.SetImage(waitCtx(t), "a.png")
	require.True(t, s.BeginLoading())

	assert.True(t, s.CompleteLoading("a.png", sampleAnnotations()))
	st := s.Snapshot()
	assert.Len(t, st.Annotations, 3)
	assert.False(t, st.IsLoadingServerData)

	require.True(t, s.BeginLoading())
	s.SetImage(waitCtx(t), "b.png")
	assert.False(t, s.CompleteLoading("a.png", nil))
	st = s.Snapshot()
	assert.Len(t, st.Annotations, 3)
	assert.False(t, st.IsLoadingServerData)
}

func TestSetImageMeasures(t *testing.T) {
	s := New(fixedProber(types.Size{Width: 2190, Height: 1230}))

	m := s.SetImage(waitCtx(t), "photo.jpg")
	assert.Equal(t, "photo.jpg", s.Snapshot().ImageURL)

	size, err := m.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, types.Size{Width: 2190, Height: 1230}, size)
	assert.Equal(t, size, s.Snapshot().ImageSize)

	select {
	case <-m.Done():
	default:
		t.Fatal("measurement not done after Wait")
	}
}

func TestStaleProbeDoesNotOverwrite(t *testing.T) {
	release := make(chan struct{})
	prober := probe.Func(func(ctx context.Context, ref string) (types.Size, error) {
		if ref == "slow.png" {
			<-release
			return types.Size{Width: 1, Height: 1}, nil
		}
		return types.Size{Width: 300, Height: 200}, nil
	})
	s := New(prober)

	slow := s.SetImage(waitCtx(t), "slow.png")
	fast := s.SetImage(waitCtx(t), "fast.png")

	size, err := fast.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, types.Size{Width: 300, Height: 200}, size)

	close(release)
	_, err = slow.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrStaleImage)

	st := s.Snapshot()
	assert.Equal(t, "fast.png", st.ImageURL)
	assert.Equal(t, types.Size{Width: 300, Height: 200}, st.ImageSize)
}

func TestSizeKeptUntilProbeSucceeds(t *testing.T) {
	fail := errors.New("boom")
	prober := probe.Func(func(ctx context.Context, ref string) (types.Size, error) {
		if ref == "bad.png" {
			return types.Size{}, fail
		}
		return types.Size{Width: 8, Height: 6}, nil
	})
	s := New(prober)

	_, err := s.SetImage(waitCtx(t), "good.png").Wait(waitCtx(t))
	require.NoError(t, err)

	_, err = s.SetImage(waitCtx(t), "bad.png").Wait(waitCtx(t))
	assert.ErrorIs(t, err, fail)

	st := s.Snapshot()
	assert.Equal(t, "bad.png", st.ImageURL)
	assert.Equal(t, types.Size{Width: 8, Height: 6}, st.ImageSize)
}

func TestSetImageWithoutProber(t *testing.T) {
	s := New(nil)
	_, err := s.SetImage(waitCtx(t), "x.png").Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrNoProber)

	_, err = s.SetImage(waitCtx(t), "").Wait(waitCtx(t))
	assert.Error(t, err)
}

func TestWaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := New(probe.Func(func(ctx context.Context, ref string) (types.Size, error) {
		<-block
		return types.Size{}, nil
	}), WithProbeTimeout(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SetImage(context.Background(), "x.png").Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
