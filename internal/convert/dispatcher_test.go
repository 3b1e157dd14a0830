package convert

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/workspace"
)

type fakeEncoder struct {
	fn func(ctx context.Context, job *domain.ConversionJob) error
}

func (f fakeEncoder) Encode(ctx context.Context, job *domain.ConversionJob) error {
	return f.fn(ctx, job)
}

type fakeDecoder struct {
	pages int
	err   error
	panic bool
}

func (f fakeDecoder) Decode(_ context.Context, _ *domain.ConversionJob, visit domain.PageVisitor) error {
	if f.panic {
		panic("corrupt xref table")
	}
	for i := 1; i <= f.pages; i++ {
		if err := visit(i, f.pages, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
			return err
		}
	}
	return f.err
}

func writeInputsAsPDF(_ context.Context, job *domain.ConversionJob) error {
	return os.WriteFile(job.OutputPath, []byte(strings.Join(job.Inputs, "\n")), 0o600)
}

func newSession(t *testing.T) *domain.Session {
	t.Helper()
	m, err := workspace.NewManager(workspace.Config{Root: t.TempDir()}, observability.Nop())
	require.NoError(t, err)
	s, err := m.Open(context.Background())
	require.NoError(t, err)
	return s
}

func TestImagesToPDFPassesInputsInOrder(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(fakeEncoder{fn: writeInputsAsPDF}, nil, 1, observability.Nop())

	inputs := []string{"/w/in/c.png", "/w/in/a.png", "/w/in/b.png"}
	job, err := d.ImagesToPDF(context.Background(), s, inputs)
	require.NoError(t, err)

	assert.Equal(t, domain.OpImagesToPDF, job.Kind)
	data, err := os.ReadFile(job.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(inputs, "\n"), string(data))
}

func TestImagesToPDFWrapsEncoderFailure(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(fakeEncoder{fn: func(context.Context, *domain.ConversionJob) error {
		return errors.New("unsupported color space")
	}}, nil, 1, observability.Nop())

	_, err := d.ImagesToPDF(context.Background(), s, []string{"x.png"})
	assert.True(t, domain.IsConversion(err))
	assert.True(t, domain.HasReason(err, domain.ReasonEncodeFailed))

	de, _ := domain.AsDomainError(err)
	assert.NotContains(t, de.UserMessage(), "color space")
}

func TestImagesToPDFRecoversPanic(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(fakeEncoder{fn: func(context.Context, *domain.ConversionJob) error {
		panic("boom")
	}}, nil, 1, observability.Nop())

	_, err := d.ImagesToPDF(context.Background(), s, []string{"x.png"})
	assert.True(t, domain.HasReason(err, domain.ReasonEncodeFailed))
}

func TestImagesToPDFRequiresOutput(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(fakeEncoder{fn: func(context.Context, *domain.ConversionJob) error { return nil }}, nil, 1, observability.Nop())

	_, err := d.ImagesToPDF(context.Background(), s, []string{"x.png"})
	assert.True(t, domain.HasReason(err, domain.ReasonEmptyOutput))
}

func TestPDFToImagesVisitsPagesInOrder(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(nil, fakeDecoder{pages: 5}, 1, observability.Nop())

	var seen []int
	job, n, err := d.PDFToImages(context.Background(), s, "/w/in/doc.pdf", func(page, total int, _ image.Image) error {
		assert.Equal(t, 5, total)
		seen = append(seen, page)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.Equal(t, []string{"/w/in/doc.pdf"}, job.Inputs)
}

func TestPDFToImagesZeroPagesIsVisibleFailure(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(nil, fakeDecoder{pages: 0}, 1, observability.Nop())

	_, n, err := d.PDFToImages(context.Background(), s, "doc.pdf", func(int, int, image.Image) error { return nil })
	assert.Zero(t, n)
	assert.True(t, domain.IsConversion(err))
	assert.True(t, domain.HasReason(err, domain.ReasonEmptyOutput))
}

func TestPDFToImagesDecoderFailures(t *testing.T) {
	s := newSession(t)
	noop := func(int, int, image.Image) error { return nil }

	d := NewDispatcher(nil, fakeDecoder{pages: 2, err: errors.New("truncated stream")}, 1, observability.Nop())
	_, _, err := d.PDFToImages(context.Background(), s, "doc.pdf", noop)
	assert.True(t, domain.HasReason(err, domain.ReasonDecodeFailed))

	d = NewDispatcher(nil, fakeDecoder{panic: true}, 1, observability.Nop())
	_, _, err = d.PDFToImages(context.Background(), s, "doc.pdf", noop)
	assert.True(t, domain.HasReason(err, domain.ReasonDecodeFailed))
}

func TestPDFToImagesVisitorErrorPassesThrough(t *testing.T) {
	s := newSession(t)
	d := NewDispatcher(nil, fakeDecoder{pages: 3}, 1, observability.Nop())
	diskFull := errors.New("disk full")

	_, n, err := d.PDFToImages(context.Background(), s, "doc.pdf", func(page int, _ int, _ image.Image) error {
		if page == 2 {
			return diskFull
		}
		return nil
	})
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, 1, n)
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	enc := fakeEncoder{fn: func(ctx context.Context, job *domain.ConversionJob) error {
		now := running.Add(1)
		for {
			p := peak.Load()
			if now <= p || peak.CompareAndSwap(p, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return writeInputsAsPDF(ctx, job)
	}}
	d := NewDispatcher(enc, nil, 2, observability.Nop())

	sessions := make([]*domain.Session, 8)
	for i := range sessions {
		sessions[i] = newSession(t)
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *domain.Session) {
			defer wg.Done()
			_, err := d.ImagesToPDF(context.Background(), s, []string{"x.png"})
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcherWaitHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	enc := fakeEncoder{fn: func(ctx context.Context, job *domain.ConversionJob) error {
		<-block
		return writeInputsAsPDF(ctx, job)
	}}
	d := NewDispatcher(enc, nil, 1, observability.Nop())
	holder, waiter := newSession(t), newSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.ImagesToPDF(context.Background(), holder, []string{"x.png"})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.ImagesToPDF(ctx, waiter, []string{"y.png"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	<-done
}

func TestNewDecoder(t *testing.T) {
	dec, err := NewDecoder("fitz", "", 150)
	require.NoError(t, err)
	assert.IsType(t, &FitzDecoder{}, dec)

	dec, err = NewDecoder("poppler", "/opt/poppler/bin", 150)
	require.NoError(t, err)
	assert.Equal(t, "/opt/poppler/bin/pdftoppm", dec.(*PopplerDecoder).binary)

	_, err = NewDecoder("ghostscript", "", 150)
	assert.Error(t, err)
}
