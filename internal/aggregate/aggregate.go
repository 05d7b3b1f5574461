// Package aggregate collects the results of the imaging fan-out, hands QA
// summaries to a message queue and runs the second, data-extraction fan-out.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/vk/dprepgo/internal/imaging"
	"github.com/vk/dprepgo/internal/qa"
	"github.com/vk/dprepgo/internal/session"
)

const (
	// DefaultQueueSize bounds the number of QA messages waiting to be published.
	DefaultQueueSize = 16
	// DefaultFlushTimeout bounds how long Run waits for queued QA messages.
	DefaultFlushTimeout = 10 * time.Second
)

// PublishWarning reports a QA message that could not be delivered. It is
// logged and counted, never returned.
type PublishWarning struct {
	Channel int
	Topic   string
	Err     error
}

func (w *PublishWarning) Error() string {
	return fmt.Sprintf("qa publish for channel %d to %q: %v", w.Channel, w.Topic, w.Err)
}

func (w *PublishWarning) Unwrap() error {
	return w.Err
}

// Options configures an Aggregator.
type Options struct {
	// Publisher receives QA summaries. Nil disables publishing.
	Publisher qa.Publisher
	Topic     string
	// Origin labels the summaries.
	Origin       string
	QueueSize    int
	FlushTimeout time.Duration
	// Extract is the second-stage task; imaging.ExtractData when nil.
	Extract session.TaskFunc
	// Retries and Timeout apply to the extraction tasks.
	Retries session.RetryBudget
	Timeout time.Duration
}

// Result is the outcome of a successful aggregation.
type Result struct {
	// Images are the imaging results in submission order.
	Images []*imaging.Image
	// Data holds the extracted planes of each image, indexed like Images.
	Data [][][]float64
	// Published and Warnings count QA deliveries and failed deliveries.
	Published int
	Warnings  int
}

// Aggregator gathers a batch of imaging tasks.
type Aggregator struct {
	sess session.Session
	opts Options
}

// New creates an aggregator over sess.
func New(sess session.Session, opts Options) *Aggregator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	if opts.Extract == nil {
		opts.Extract = imaging.ExtractData
	}
	return &Aggregator{sess: sess, opts: opts}
}

type message struct {
	channel int
	payload []byte
}

// Run gathers tasks with raise semantics, queues a QA summary per image when
// a publisher is configured, then scatters every image and gathers the
// extracted data in the same order.
func (a *Aggregator) Run(ctx context.Context, tasks []*session.Task) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	results, err := a.sess.Gather(ctx, tasks, session.OnErrorRaise)
	if err != nil {
		return nil, err
	}
	images := make([]*imaging.Image, len(results))
	for i, r := range results {
		im, ok := r.(*imaging.Image)
		if !ok {
			return nil, fmt.Errorf("result %d: expected *imaging.Image, got %T", i, r)
		}
		images[i] = im
	}
	logger.Info("Gathered imaging results.", "count", len(images))

	var published, warnings atomic.Int64
	pubCtx, stopPublishing := context.WithCancel(ctx)
	defer stopPublishing()
	drained := a.startPublishing(pubCtx, images, &published, &warnings)

	data, err := a.extract(ctx, images)
	if err != nil {
		stopPublishing()
		<-drained
		return nil, err
	}

	select {
	case <-drained:
	case <-time.After(a.opts.FlushTimeout):
		stopPublishing()
		<-drained
		a.warn(ctx, &PublishWarning{Channel: -1, Topic: a.opts.Topic, Err: fmt.Errorf("flush timed out after %s", a.opts.FlushTimeout)}, &warnings)
	}

	return &Result{
		Images:    images,
		Data:      data,
		Published: int(published.Load()),
		Warnings:  int(warnings.Load()),
	}, nil
}

// startPublishing encodes and publishes a summary per image in the
// background. The returned channel is closed once nothing more will be
// published, either because every message was handled or ctx ended.
func (a *Aggregator) startPublishing(ctx context.Context, images []*imaging.Image, published, warnings *atomic.Int64) <-chan struct{} {
	drained := make(chan struct{})
	if a.opts.Publisher == nil {
		close(drained)
		return drained
	}
	queue := make(chan message, a.opts.QueueSize)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.enqueue(ctx, images, queue, warnings)
	}()
	go func() {
		defer wg.Done()
		a.publish(ctx, queue, published, warnings)
	}()
	go func() {
		wg.Wait()
		close(drained)
	}()
	return drained
}

// enqueue feeds the bounded queue and closes it when done.
func (a *Aggregator) enqueue(ctx context.Context, images []*imaging.Image, queue chan<- message, warnings *atomic.Int64) {
	defer close(queue)
	for _, im := range images {
		b, err := qa.Encode(qa.Summarize(a.opts.Origin, im))
		if err != nil {
			a.warn(ctx, &PublishWarning{Channel: im.Channel, Topic: a.opts.Topic, Err: err}, warnings)
			continue
		}
		select {
		case queue <- message{channel: im.Channel, payload: b}:
		case <-ctx.Done():
			return
		}
	}
}

// publish drains the queue until it is closed or ctx ends.
func (a *Aggregator) publish(ctx context.Context, queue <-chan message, published, warnings *atomic.Int64) {
	logger := ctxlog.FromContext(ctx)
	for {
		var msg message
		var ok bool
		select {
		case <-ctx.Done():
			return
		case msg, ok = <-queue:
			if !ok {
				return
			}
		}
		if err := a.opts.Publisher.Publish(ctx, a.opts.Topic, msg.payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.warn(ctx, &PublishWarning{Channel: msg.channel, Topic: a.opts.Topic, Err: err}, warnings)
			continue
		}
		published.Add(1)
		logger.Debug("Published QA summary.", "channel", msg.channel, "topic", a.opts.Topic, "bytes", len(msg.payload))
	}
}

func (a *Aggregator) warn(ctx context.Context, w *PublishWarning, warnings *atomic.Int64) {
	warnings.Add(1)
	ctxlog.FromContext(ctx).Warn("QA publish failed.", "channel", w.Channel, "topic", w.Topic, "error", w)
}

// extract runs the second fan-out. It is not supervised: a failure here is
// raised at once.
func (a *Aggregator) extract(ctx context.Context, images []*imaging.Image) ([][][]float64, error) {
	logger := ctxlog.FromContext(ctx)
	tasks := make([]*session.Task, 0, len(images))
	handles := make([]session.Handle, 0, len(images))
	defer func() { a.sess.Release(handles...) }()
	for i, im := range images {
		h, err := a.sess.Scatter(ctx, im)
		if err != nil {
			return nil, fmt.Errorf("scatter image %d: %w", i, err)
		}
		handles = append(handles, h)
		t, err := a.sess.Submit(ctx, a.opts.Extract, h, session.SubmitOptions{
			Name:    fmt.Sprintf("extract-%d", im.Channel),
			Ordinal: i,
			Retries: a.opts.Retries,
			Timeout: a.opts.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("submit extraction %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}

	if err := a.sess.Wait(ctx, tasks); err != nil {
		return nil, err
	}
	results, err := a.sess.Gather(ctx, tasks, session.OnErrorRaise)
	if err != nil {
		return nil, err
	}
	data := make([][][]float64, len(results))
	for i, r := range results {
		planes, ok := r.([][]float64)
		if !ok {
			return nil, fmt.Errorf("extraction %d: expected [][]float64, got %T", i, r)
		}
		data[i] = planes
	}
	logger.Info("Extracted image data.", "count", len(data))
	return data, nil
}
