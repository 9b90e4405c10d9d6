package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/zeebo/hmux"
	"github.com/zeebo/mwc"

	"storj.io/handletable"
	"storj.io/handletable/internal/utils"
	"storj.io/handletable/monitor"
)

type session struct {
	id      uint64
	created time.Time
}

func main() {
	mon := monitor.New()
	tbl, err := handletable.New[session](handletable.Options{
		Capacity: 1 << 10,
		Observer: mon,
	})
	if err != nil {
		panic(err)
	}

	// a few goroutines churning handles so the debug surface has something
	// to show
	for range 4 {
		go func() {
			sessions := make([]session, 64)
			handles := make([]handletable.Handle, 64)
			for {
				i := mwc.Intn(len(sessions))
				if handles[i].IsValid() {
					tbl.Free(&handles[i])
				} else {
					sessions[i] = session{id: mwc.Uint64(), created: time.Now()}
					if h, err := tbl.Allocate(&sessions[i]); err == nil {
						handles[i] = h
					}
				}
				time.Sleep(utils.Jitter(time.Millisecond))
			}
		}()
	}

	go func() {
		interval := utils.Bound(5*time.Second, [2]time.Duration{time.Second, time.Minute})
		for {
			time.Sleep(utils.Jitter(interval))
			w := mon.Window()
			fmt.Printf("allocated=%d freed=%d exhausted=%d live=%d\n",
				w.Allocated, w.Freed, w.Exhausted, tbl.AllocatedCount())
		}
	}()

	fmt.Println("listening on http://localhost:9913")
	panic(http.ListenAndServe("localhost:9913", hmux.Dir{
		"/debug": mon.Handler(),
		"/dump":  monitor.Dump(tbl),
	}))
}
