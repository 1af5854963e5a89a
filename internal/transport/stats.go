package transport

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// statsObserver turns packfile parser events into TransferStats snapshots
type statsObserver struct {
	bytes *countingReader
	sink  domain.ProgressSink
	stats domain.TransferStats
	err   error
}

func (o *statsObserver) OnHeader(count uint32) error {
	o.stats.TotalObjects = count
	return o.emit()
}

func (o *statsObserver) OnInflatedObjectHeader(t plumbing.ObjectType, _ int64, _ int64) error {
	o.stats.ReceivedObjects++
	if t.IsDelta() {
		o.stats.TotalDeltas++
	}
	return o.emit()
}

func (o *statsObserver) OnInflatedObjectContent(_ plumbing.Hash, _ int64, _ uint32, _ []byte) error {
	if o.stats.IndexedObjects < o.stats.TotalObjects {
		o.stats.IndexedObjects++
	}
	if o.stats.ReceivedObjects == o.stats.TotalObjects {
		base := o.stats.TotalObjects - o.stats.TotalDeltas
		if o.stats.IndexedObjects > base {
			o.stats.IndexedDeltas = min(o.stats.IndexedObjects-base, o.stats.TotalDeltas)
		}
	}
	return o.emit()
}

func (o *statsObserver) OnFooter(_ plumbing.Hash) error {
	o.stats.IndexedObjects = o.stats.TotalObjects
	o.stats.IndexedDeltas = o.stats.TotalDeltas
	return o.emit()
}

func (o *statsObserver) emit() error {
	if o.bytes.n > o.stats.ReceivedBytes {
		o.stats.ReceivedBytes = o.bytes.n
	}
	if o.sink == nil {
		return nil
	}
	if err := o.sink.Transfer(o.stats); err != nil {
		o.err = err
		return err
	}
	return nil
}
