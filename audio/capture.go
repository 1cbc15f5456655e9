package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/ajshout/pulse-visualizer/audio/util"
)

// Capture pumps fragments of the given size (in frames) from src into ring until
// ctx is cancelled or the source fails. The source is started here and always
// closed before Capture returns, so the ring is never written to afterwards.
// Cancellation returns nil; source failures are returned wrapped.
func Capture(ctx context.Context, src Source, ring *util.RingBuffer, fragment int) (err error) {
	if err := src.Start(); err != nil {
		src.Close()
		return fmt.Errorf("starting capture: %w", err)
	}

	stop := make(chan struct{})
	closed := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		// unblocks a RequestFragment waiting on the device
		closed <- src.Close()
	}()
	defer func() {
		close(stop)
		if cerr := <-closed; cerr != nil && err == nil {
			err = fmt.Errorf("closing capture: %w", cerr)
		}
	}()

	var fragments uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		b, err := src.RequestFragment(fragment)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSourceClosed) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				glog.Infof("capture source exhausted after %d fragments", fragments)
				return nil
			}
			return fmt.Errorf("capture: %w", err)
		}
		ring.Write(b)

		fragments++
		if glog.V(3) && fragments%256 == 0 {
			glog.Infof("captured %d fragments, %d bytes total", fragments, ring.Written())
		}
	}
}
