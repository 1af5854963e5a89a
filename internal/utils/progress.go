package utils

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Standard progress bar descriptions
const (
	DescReceiving = "Receiving objects"
	DescResolving = "Resolving deltas"
)

// NewProgressBar creates a consistently styled progress bar writing to w.
// Use total -1 for unknown totals (spinner mode).
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts, progressbar.OptionShowIts())
	}

	return progressbar.NewOptions(total, opts...)
}

// TransferBar renders object transfer counts as a progress bar. It switches
// from receiving objects to resolving deltas once every object has arrived.
type TransferBar struct {
	w         io.Writer
	bar       *progressbar.ProgressBar
	resolving bool
}

// NewTransferBar creates a TransferBar writing to w
func NewTransferBar(w io.Writer) *TransferBar {
	return &TransferBar{w: w}
}

// Update moves the bar to the given counts
func (b *TransferBar) Update(receivedObjects, totalObjects, indexedDeltas, totalDeltas int, receivedBytes int64) error {
	if !b.resolving && totalObjects > 0 && receivedObjects >= totalObjects && totalDeltas > 0 {
		if b.bar != nil {
			_ = b.bar.Finish()
		}
		b.bar = nil
		b.resolving = true
	}

	current, total, desc := receivedObjects, totalObjects, DescReceiving
	if b.resolving {
		current, total, desc = indexedDeltas, totalDeltas, DescResolving
	} else if receivedBytes > 0 {
		desc = fmt.Sprintf("%s (%s)", DescReceiving, FormatBytes(receivedBytes))
	}

	if b.bar == nil {
		b.bar = NewProgressBar(b.w, total, desc)
	}
	if int64(total) != b.bar.GetMax64() {
		b.bar.ChangeMax(total)
	}
	b.bar.Describe(desc)
	return b.bar.Set(current)
}

// Finish completes and clears the bar
func (b *TransferBar) Finish() error {
	if b.bar == nil {
		return nil
	}
	return b.bar.Finish()
}

// FormatBytes renders n with a binary unit suffix
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
