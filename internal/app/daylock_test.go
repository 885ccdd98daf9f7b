package service

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDayLocks(t *testing.T) {
	Convey("Given day locks", t, func() {
		d := newDayLocks()

		Convey("When many goroutines increment under the same key", func() {
			var wg sync.WaitGroup
			counter := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := d.lock("u1", "2025-03-04")
					counter++
					unlock()
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost and the entry is released", func() {
				So(counter, ShouldEqual, 50)
				So(d.size(), ShouldEqual, 0)
			})
		})

		Convey("When different days are held at once", func() {
			a := d.lock("u1", "2025-03-04")
			b := d.lock("u1", "2025-03-05")

			Convey("Then neither blocks the other", func() {
				So(d.size(), ShouldEqual, 2)
				a()
				b()
				So(d.size(), ShouldEqual, 0)
			})
		})
	})
}
