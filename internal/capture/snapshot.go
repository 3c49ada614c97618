package capture

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrDeviceTimeout is returned when a snapshot does not complete before its context expires.
var ErrDeviceTimeout = errors.New("camera capture timed out")

type snapshotResult struct {
	frame *gocv.Mat
	err   error
}

// Snapshot opens device deviceID, reads exactly one frame and releases the device.
// The device is never held beyond the call. If ctx expires first, Snapshot returns
// ErrDeviceTimeout; the capture goroutine still releases the device and discards
// its frame once the driver returns.
// The caller is responsible for closing the returned Mat.
func Snapshot(ctx context.Context, open Opener, deviceID int) (gocv.Mat, error) {
	if deviceID < 0 {
		return gocv.NewMat(), fmt.Errorf("%w: invalid device index %d", ErrDevice, deviceID)
	}

	done := make(chan snapshotResult, 1)

	go func() {
		frame, err := grab(open(deviceID))
		done <- snapshotResult{frame: frame, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return gocv.NewMat(), res.err
		}
		mat := *res.frame
		return mat, nil
	case <-ctx.Done():
		go func() {
			res := <-done
			if res.frame != nil {
				res.frame.Close()
			}
			log.WithField("device", deviceID).Warn("capture: late frame discarded after timeout")
		}()
		return gocv.NewMat(), fmt.Errorf("%w: device %d: %v", ErrDeviceTimeout, deviceID, ctx.Err())
	}
}

func grab(cam Camera) (*gocv.Mat, error) {
	if err := cam.Open(); err != nil {
		return nil, err
	}

	frame, err := cam.ReadFrame()
	if cerr := cam.Close(); cerr != nil && err == nil {
		// The frame is already in memory, so a failed release is not fatal.
		log.WithError(cerr).Warn("capture: error closing camera")
	}
	if err != nil {
		return nil, err
	}

	return frame, nil
}
