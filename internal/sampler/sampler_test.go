package sampler_test

import (
	"context"
	"image"
	"image/color"
	"pairscan/internal/eventloop"
	"pairscan/internal/sampler"
	"pairscan/internal/session"
	"pairscan/pkg/capture/capturetest"
	mockdecoder "pairscan/pkg/decoder/mock"
	"pairscan/pkg/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAimWindow(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		side   int
		want   image.Rectangle
	}{
		{
			name:   "landscape",
			bounds: image.Rect(0, 0, 640, 480),
			side:   200,
			want:   image.Rect(220, 140, 420, 340),
		},
		{
			name:   "portrait",
			bounds: image.Rect(0, 0, 480, 640),
			side:   200,
			want:   image.Rect(140, 220, 340, 420),
		},
		{
			name:   "exact fit",
			bounds: image.Rect(0, 0, 200, 200),
			side:   200,
			want:   image.Rect(0, 0, 200, 200),
		},
		{
			name:   "smaller than aim",
			bounds: image.Rect(0, 0, 160, 120),
			side:   200,
			want:   image.Rect(20, 0, 140, 120),
		},
		{
			name:   "offset bounds",
			bounds: image.Rect(10, 10, 410, 310),
			side:   100,
			want:   image.Rect(160, 110, 260, 210),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sampler.AimWindow(tt.bounds, tt.side)
			require.Equal(t, tt.want, got)
			require.True(t, got.In(tt.bounds))
		})
	}
}

func TestCropAim(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	// mark the frame center
	img.Set(320, 240, color.NRGBA{R: 255, A: 255})

	got := sampler.CropAim(img, 200)
	require.Equal(t, image.Rect(0, 0, 200, 200), got.Bounds())
	require.Equal(t, color.NRGBA{R: 255, A: 255}, got.NRGBAAt(100, 100))
}

type fixture struct {
	loop    *eventloop.Loop
	stream  *capturetest.Stream
	sess    *session.Session
	decoder *mockdecoder.MockDecoder
	sampler *sampler.Sampler
}

func newFixture(t *testing.T, ready bool) *fixture {
	t.Helper()

	loop := eventloop.New(time.Millisecond)
	stream := capturetest.NewStream(image.NewNRGBA(image.Rect(0, 0, 640, 480)), ready)
	dev := capturetest.NewDevice(nil)
	dev.QueueStream(domain.SlotFirst, stream)

	m := session.NewManager(dev, loop, loop, session.Options{})
	var sess *session.Session
	m.Open(context.Background(), domain.SlotFirst, func(s *session.Session, err error) {
		require.NoError(t, err)
		sess = s
	})
	loop.Drain()
	require.NotNil(t, sess)

	dec := mockdecoder.NewMockDecoder(gomock.NewController(t))

	return &fixture{
		loop:    loop,
		stream:  stream,
		sess:    sess,
		decoder: dec,
		sampler: sampler.New(loop, dec, sampler.Options{}),
	}
}

func TestLoop_WaitsForReadyStream(t *testing.T) {
	f := newFixture(t, false)

	readies, renders := 0, 0
	l := f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Authorized: func() bool { return true },
		OnReady:    func() { readies++ },
		Render:     func(image.Image) { renders++ },
	})

	for range 3 {
		f.loop.Tick()
	}
	require.False(t, l.Ready())
	require.Zero(t, readies)
	require.Zero(t, renders)

	f.stream.SetReady(true)
	f.decoder.EXPECT().Decode(gomock.Any()).Return("", false).Times(2)
	f.loop.Tick()
	f.loop.Tick()
	require.True(t, l.Ready())
	require.Equal(t, 1, readies, "ready fires once")
	require.Equal(t, 2, renders)
}

func TestLoop_UnauthorizedNeverDecodes(t *testing.T) {
	f := newFixture(t, true)

	renders := 0
	l := f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Authorized: func() bool { return false },
		Render:     func(image.Image) { renders++ },
	})
	f.decoder.EXPECT().Decode(gomock.Any()).Times(0)

	for range 5 {
		f.loop.Tick()
	}
	require.Equal(t, 5, renders, "previews keep running while decoding is gated")
	require.False(t, l.Stopped())
}

func TestLoop_DecodesAimWindowAndStops(t *testing.T) {
	f := newFixture(t, true)

	authorized := false
	var decoded []string
	l := f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Authorized: func() bool { return authorized },
		OnDecoded:  func(text string) { decoded = append(decoded, text) },
	})

	f.loop.Tick()
	authorized = true

	gomock.InOrder(
		f.decoder.EXPECT().Decode(gomock.Any()).Return("", false),
		f.decoder.EXPECT().Decode(gomock.Any()).DoAndReturn(func(img image.Image) (string, bool) {
			require.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())

			return "DLV-123", true
		}),
	)

	for range 5 {
		f.loop.Tick()
	}
	require.Equal(t, []string{"DLV-123"}, decoded, "the first hit is delivered once")
	require.True(t, l.Stopped())
	require.False(t, f.loop.Live(f.sess.Token()), "a hit cancels the frame loop")
}

func TestLoop_StopIsIdempotent(t *testing.T) {
	f := newFixture(t, true)

	l := f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Authorized: func() bool { return true },
	})
	f.decoder.EXPECT().Decode(gomock.Any()).Times(0)

	l.Stop()
	require.NotPanics(t, l.Stop)
	f.loop.Tick()
	require.True(t, l.Stopped())
}

func TestLoop_SessionCloseEndsLoop(t *testing.T) {
	f := newFixture(t, true)

	renders := 0
	f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Render: func(image.Image) { renders++ },
	})

	f.loop.Tick()
	require.NoError(t, f.sess.Close(context.Background()))
	f.loop.Tick()
	f.loop.Tick()
	require.Equal(t, 1, renders)
	require.True(t, f.stream.Released())
}

func TestLoop_ResizesWorkingBuffer(t *testing.T) {
	f := newFixture(t, true)

	var sizes []image.Rectangle
	f.sampler.Start(context.Background(), f.sess, sampler.Hooks{
		Render: func(img image.Image) { sizes = append(sizes, img.Bounds()) },
	})

	f.loop.Tick()
	f.stream.SetFrame(image.NewGray(image.Rect(0, 0, 320, 240)))
	f.loop.Tick()

	require.Equal(t, []image.Rectangle{image.Rect(0, 0, 640, 480), image.Rect(0, 0, 320, 240)}, sizes)
}
