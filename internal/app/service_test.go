package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/proxtag/internal/app"
	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(1024),
			service.WithSubscriberBuffer(8),
			service.WithSweepInterval(time.Second),
			service.WithIdleTimeout(30*time.Second),
			service.WithSignalCalibration(-59, 2.0),
			service.WithRoomCodes(6, 16),
			service.WithEventLogSize(32),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})

			Convey("And stopping should mark it stopped", func() {
				svc.Stop()
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_GameFlow(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When two players run a full round", func() {
			alice, err := svc.CreatePlayer(ctx, "device-a", "alice")
			So(err, ShouldBeNil)
			bob, err := svc.CreatePlayer(ctx, "device-b", "bob")
			So(err, ShouldBeNil)

			room, err := svc.CreateRoom(ctx, alice.ID, "yard", model.RoomSettings{})
			So(err, ShouldBeNil)
			So(room.Code, ShouldNotBeEmpty)

			_, err = svc.JoinRoom(ctx, alice.ID, room.Code)
			So(err, ShouldBeNil)
			_, err = svc.JoinRoom(ctx, bob.ID, room.Code)
			So(err, ShouldBeNil)

			snap, err := svc.StartGame(ctx, room.ID)
			So(err, ShouldBeNil)
			So(snap.Status, ShouldEqual, model.StatusRunning)
			So(snap.ItPlayerID, ShouldNotBeEmpty)

			Convey("And telemetry flows through the queue to the estimator", func() {
				ok := svc.EnqueueTelemetry(ctx, model.TelemetryUpdate{
					PlayerID: alice.ID, Kind: model.TelemetrySignal, RSSI: -60, At: time.Now(),
				})
				So(ok, ShouldBeTrue)
				ok = svc.EnqueueTelemetry(ctx, model.TelemetryUpdate{
					PlayerID: bob.ID, Kind: model.TelemetrySignal, RSSI: -62, At: time.Now(),
				})
				So(ok, ShouldBeTrue)

				// Workers apply updates asynchronously.
				time.Sleep(100 * time.Millisecond)

				attacker := snap.ItPlayerID
				defender := alice.ID
				if attacker == alice.ID {
					defender = bob.ID
				}
				res, err := svc.AttemptTag(ctx, attacker, defender)
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.NewItPlayerID, ShouldEqual, defender)
			})

			Convey("And the room can be finished and inspected", func() {
				finished, err := svc.FinishGame(ctx, room.ID)
				So(err, ShouldBeNil)
				So(finished.Status, ShouldEqual, model.StatusFinished)

				state, err := svc.RoomState(ctx, room.ID)
				So(err, ShouldBeNil)
				So(state.Players, ShouldHaveLength, 2)
			})
		})
	})
}

func TestService_Subscribe(t *testing.T) {
	Convey("Given a started service with a room", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		alice, _ := svc.CreatePlayer(ctx, "device-a", "alice")
		room, err := svc.CreateRoom(ctx, alice.ID, "", model.RoomSettings{})
		So(err, ShouldBeNil)

		Convey("When subscribing to the room", func() {
			sub, err := svc.Subscribe(ctx, room.ID)
			So(err, ShouldBeNil)
			defer sub.Close()

			Convey("Then joining the room delivers a snapshot", func() {
				_, err := svc.JoinRoom(ctx, alice.ID, room.Code)
				So(err, ShouldBeNil)

				select {
				case snap := <-sub.C:
					So(snap.RoomID, ShouldEqual, room.ID)
					So(snap.Players, ShouldHaveLength, 1)
				case <-time.After(time.Second):
					So("timed out waiting for snapshot", ShouldBeEmpty)
				}
			})
		})

		Convey("When subscribing to an unknown room", func() {
			_, err := svc.Subscribe(ctx, "missing")

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
