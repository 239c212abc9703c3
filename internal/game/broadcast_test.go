package game

import (
	"context"
	"testing"

	"github.com/okian/proxtag/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBroadcaster(t *testing.T) {
	ctx := context.Background()

	Convey("Given a broadcaster with a small buffer", t, func() {
		b := NewBroadcaster(WithSubscriberBuffer(2))

		Convey("When a room has two subscribers", func() {
			s1 := b.Subscribe("room-1")
			s2 := b.Subscribe("room-1")
			other := b.Subscribe("room-2")
			So(b.SubscriberCount(), ShouldEqual, 3)

			b.Publish(ctx, model.RoomSnapshot{RoomID: "room-1", PlayerCount: 2})

			Convey("Then both receive the snapshot and the other room does not", func() {
				So((<-s1.C).PlayerCount, ShouldEqual, 2)
				So((<-s2.C).PlayerCount, ShouldEqual, 2)
				select {
				case <-other.C:
					So("other room received a snapshot", ShouldBeEmpty)
				default:
				}
			})

			s1.Close()
			s2.Close()
			other.Close()
		})

		Convey("When a subscriber's buffer is full", func() {
			s := b.Subscribe("room-1")
			for i := 0; i < 5; i++ {
				b.Publish(ctx, model.RoomSnapshot{RoomID: "room-1", PlayerCount: i})
			}

			Convey("Then publishing never blocks and extra snapshots are dropped", func() {
				So((<-s.C).PlayerCount, ShouldEqual, 0)
				So((<-s.C).PlayerCount, ShouldEqual, 1)
				select {
				case _, ok := <-s.C:
					So(ok, ShouldBeFalse)
				default:
				}
			})

			s.Close()
		})

		Convey("When a subscription is closed twice", func() {
			s := b.Subscribe("room-1")
			So(func() {
				s.Close()
				s.Close()
			}, ShouldNotPanic)
			So(b.SubscriberCount(), ShouldEqual, 0)
		})

		Convey("When a room is closed", func() {
			s1 := b.Subscribe("room-1")
			s2 := b.Subscribe("room-1")
			b.CloseRoom("room-1")

			Convey("Then all its subscriber channels are closed", func() {
				_, ok := <-s1.C
				So(ok, ShouldBeFalse)
				_, ok = <-s2.C
				So(ok, ShouldBeFalse)
				So(b.SubscriberCount(), ShouldEqual, 0)
			})

			Convey("And a later Close on the subscription is harmless", func() {
				So(func() { s1.Close() }, ShouldNotPanic)
			})
		})
	})
}
