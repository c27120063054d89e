package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// waitNetworkIdle returns a channel that closes once no request has been in
// flight for idleAfter. Requests are counted from CDP network events on ctx;
// an initial timer covers pages that issue no requests beyond the document
// itself.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() {
					close(idleChan)
				})
			}
		})
	}

	chromedp.ListenTarget(ctx,
		func(ev any) {
			switch ev.(type) {
			case *network.EventRequestWillBeSent:
				atomic.AddInt32(&activeReqs, 1)
			case *network.EventLoadingFinished, *network.EventLoadingFailed:
				if atomic.AddInt32(&activeReqs, -1) <= 0 {
					startTimer()
				}
			}
		})

	startTimer()
	return idleChan
}
