package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/proxtag/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// runningPair builds a world with a running two-player room and returns the
// world, the it-holder, and the other player.
func runningPair(ctx context.Context, now *time.Time, settings model.RoomSettings) (w *World, it, other *model.Player, roomID string) {
	w = testWorld(now)
	alice := mustPlayer(ctx, w, "device-a", "alice")
	bob := mustPlayer(ctx, w, "device-b", "bob")
	room, err := w.CreateRoom(ctx, alice.ID, "", settings)
	So(err, ShouldBeNil)
	_, err = w.JoinRoom(ctx, alice.ID, room.Code)
	So(err, ShouldBeNil)
	_, err = w.JoinRoom(ctx, bob.ID, room.Code)
	So(err, ShouldBeNil)
	snap, err := w.StartGame(ctx, room.ID)
	So(err, ShouldBeNil)

	it, other = alice, bob
	if snap.ItPlayerID == bob.ID {
		it, other = bob, alice
	}
	return w, it, other, room.ID
}

func TestAttemptTagStructuralErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given players in different situations", t, func() {
		w := testWorld(&now)
		alice := mustPlayer(ctx, w, "device-a", "alice")
		bob := mustPlayer(ctx, w, "device-b", "bob")

		Convey("When either player is unknown", func() {
			_, err := w.AttemptTag(ctx, "missing", bob.ID)
			So(err, ShouldEqual, ErrPlayerNotFound)
			_, err = w.AttemptTag(ctx, alice.ID, "missing")
			So(err, ShouldEqual, ErrPlayerNotFound)
		})

		Convey("When neither player is in a room", func() {
			_, err := w.AttemptTag(ctx, alice.ID, bob.ID)
			So(err, ShouldEqual, ErrCrossRoomTag)
		})

		Convey("When the players are in different rooms", func() {
			r1, _ := w.CreateRoom(ctx, alice.ID, "", model.RoomSettings{})
			r2, _ := w.CreateRoom(ctx, bob.ID, "", model.RoomSettings{})
			_, err := w.JoinRoom(ctx, alice.ID, r1.Code)
			So(err, ShouldBeNil)
			_, err = w.JoinRoom(ctx, bob.ID, r2.Code)
			So(err, ShouldBeNil)

			_, err = w.AttemptTag(ctx, alice.ID, bob.ID)
			So(err, ShouldEqual, ErrCrossRoomTag)
		})

		Convey("When the shared room is still in lobby", func() {
			room, _ := w.CreateRoom(ctx, alice.ID, "", model.RoomSettings{})
			_, err := w.JoinRoom(ctx, alice.ID, room.Code)
			So(err, ShouldBeNil)
			_, err = w.JoinRoom(ctx, bob.ID, room.Code)
			So(err, ShouldBeNil)

			_, err = w.AttemptTag(ctx, alice.ID, bob.ID)
			So(err, ShouldEqual, ErrRoomNotRunning)
		})
	})
}

func TestAttemptTagValidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running room with default thresholds", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		w, it, other, roomID := runningPair(ctx, &now, model.RoomSettings{})

		Convey("When no signal was recorded for either side", func() {
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the attempt fails with missing_signal", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Reason, ShouldEqual, model.OutcomeMissingSignal)
			})

			Convey("And exactly one failure event was appended", func() {
				events, err := w.RecentEvents(ctx, roomID, 10)
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].Success, ShouldBeFalse)
				So(events[0].Reason, ShouldEqual, model.OutcomeMissingSignal)
			})

			Convey("And no is-it flag changed", func() {
				snap, _ := w.RoomState(ctx, roomID)
				So(snap.ItPlayerID, ShouldEqual, it.ID)
			})
		})

		Convey("When both players are near and eligible", func() {
			w.Telemetry().RecordSignal(ctx, it.ID, -60, now)
			w.Telemetry().RecordSignal(ctx, other.ID, -62, now)
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the tag succeeds with the mean signal", func() {
				So(res.Success, ShouldBeTrue)
				So(res.Reason, ShouldEqual, model.OutcomeSuccess)
				So(res.MeanSignalDBM, ShouldEqual, -61)
				So(res.Distance, ShouldBeGreaterThan, 0)
			})

			Convey("And it transfers from the attacker to the defender", func() {
				So(res.NewItPlayerID, ShouldEqual, other.ID)
				snap, _ := w.RoomState(ctx, roomID)
				So(snap.ItPlayerID, ShouldEqual, other.ID)
				itCount := 0
				for _, pv := range snap.Players {
					if pv.IsIt {
						itCount++
					}
				}
				So(itCount, ShouldEqual, 1)
			})

			Convey("And the counters moved on both sides only", func() {
				a, _ := w.Player(ctx, it.ID)
				d, _ := w.Player(ctx, other.ID)
				So(a.Score, ShouldEqual, 1)
				So(a.TagsMade, ShouldEqual, 1)
				So(a.LastTagAttemptAt, ShouldEqual, now)
				So(d.TagsReceived, ShouldEqual, 1)
				So(d.LastTaggedAt, ShouldEqual, now)
			})

			Convey("And exactly one success event was appended", func() {
				events, _ := w.RecentEvents(ctx, roomID, 10)
				So(events, ShouldHaveLength, 1)
				So(events[0].Success, ShouldBeTrue)
			})
		})

		Convey("When the players are too far apart", func() {
			w.Telemetry().RecordSignal(ctx, it.ID, -80, now)
			w.Telemetry().RecordSignal(ctx, other.ID, -82, now)
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the attempt fails with too_far and a positive distance", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Reason, ShouldEqual, model.OutcomeTooFar)
				So(res.MeanSignalDBM, ShouldEqual, -81)
				So(res.Distance, ShouldBeGreaterThan, 0)
			})

			Convey("And the it-holder is unchanged", func() {
				snap, _ := w.RoomState(ctx, roomID)
				So(snap.ItPlayerID, ShouldEqual, it.ID)
			})

			Convey("And the attacker's attempt bookkeeping moved", func() {
				a, _ := w.Player(ctx, it.ID)
				So(a.LastTagAttemptAt, ShouldEqual, now)
				So(a.TagAttempts, ShouldEqual, 1)
			})
		})

		Convey("When the attacker is still cooling down", func() {
			w.Telemetry().RecordSignal(ctx, it.ID, -80, now)
			w.Telemetry().RecordSignal(ctx, other.ID, -82, now)
			_, err := w.AttemptTag(ctx, it.ID, other.ID) // too_far, records the attempt
			So(err, ShouldBeNil)

			now = now.Add(time.Second) // default cooldown is 3s
			w.Telemetry().RecordSignal(ctx, it.ID, -60, now)
			w.Telemetry().RecordSignal(ctx, other.ID, -62, now)
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the attempt fails with attacker_cooldown", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Reason, ShouldEqual, model.OutcomeAttackerCooldown)
			})

			Convey("And after the cooldown elapses the attempt succeeds", func() {
				now = now.Add(3 * time.Second)
				res, err := w.AttemptTag(ctx, it.ID, other.ID)
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
			})
		})
	})

	Convey("Given a running room with a short cooldown and a 2s immunity", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		w, it, other, _ := runningPair(ctx, &now, model.RoomSettings{
			Cooldown: time.Millisecond,
			Immunity: 2 * time.Second,
		})
		w.Telemetry().RecordSignal(ctx, it.ID, -60, now)
		w.Telemetry().RecordSignal(ctx, other.ID, -62, now)

		Convey("When the defender was tagged one second ago", func() {
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue) // other is now it and freshly tagged

			now = now.Add(time.Second)
			res, err = w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the attempt fails with defender_immunity", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Reason, ShouldEqual, model.OutcomeDefenderImmunity)
			})

			Convey("And at exactly the immunity boundary it succeeds again", func() {
				now = now.Add(time.Second) // elapsed == immunity, boundary is exclusive
				res, err := w.AttemptTag(ctx, it.ID, other.ID)
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
			})
		})
	})

	Convey("Given a room threshold override", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		w, it, other, _ := runningPair(ctx, &now, model.RoomSettings{
			SignalThresholdDBM: -55,
		})
		w.Telemetry().RecordSignal(ctx, it.ID, -60, now)
		w.Telemetry().RecordSignal(ctx, other.ID, -62, now)

		Convey("When the mean misses the stricter override", func() {
			res, err := w.AttemptTag(ctx, it.ID, other.ID)
			So(err, ShouldBeNil)

			Convey("Then the attempt fails with too_far", func() {
				So(res.Success, ShouldBeFalse)
				So(res.Reason, ShouldEqual, model.OutcomeTooFar)
			})
		})
	})
}

func TestAttemptTagConcurrent(t *testing.T) {
	ctx := context.Background()

	Convey("Given three players in a running room targeting the it-holder", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		w := testWorld(&now)
		alice := mustPlayer(ctx, w, "device-a", "alice")
		bob := mustPlayer(ctx, w, "device-b", "bob")
		carol := mustPlayer(ctx, w, "device-c", "carol")
		room, _ := w.CreateRoom(ctx, alice.ID, "", model.RoomSettings{})
		ids := []string{alice.ID, bob.ID, carol.ID}
		for _, id := range ids {
			_, err := w.JoinRoom(ctx, id, room.Code)
			So(err, ShouldBeNil)
			w.Telemetry().RecordSignal(ctx, id, -60, now)
		}
		snap, err := w.StartGame(ctx, room.ID)
		So(err, ShouldBeNil)
		itID := snap.ItPlayerID

		var attackers []string
		for _, id := range ids {
			if id != itID {
				attackers = append(attackers, id)
			}
		}

		Convey("When both others attempt to tag the it-holder concurrently", func() {
			results := make([]*TagResult, len(attackers))
			var wg sync.WaitGroup
			for i, attacker := range attackers {
				wg.Add(1)
				go func(i int, attacker string) {
					defer wg.Done()
					res, err := w.AttemptTag(ctx, attacker, itID)
					if err == nil {
						results[i] = res
					}
				}(i, attacker)
			}
			wg.Wait()

			Convey("Then exactly one attempt succeeds", func() {
				successes := 0
				var winner string
				for i, res := range results {
					So(res, ShouldNotBeNil)
					if res.Success {
						successes++
						winner = attackers[i]
					}
				}
				So(successes, ShouldEqual, 1)

				Convey("And the is-it flag ends in a single well-defined state", func() {
					after, err := w.RoomState(ctx, room.ID)
					So(err, ShouldBeNil)
					So(after.ItPlayerID, ShouldEqual, winner)
					itCount := 0
					for _, pv := range after.Players {
						if pv.IsIt {
							itCount++
						}
					}
					So(itCount, ShouldEqual, 1)
				})

				Convey("And both attempts were recorded in the event log", func() {
					events, err := w.RecentEvents(ctx, room.ID, 10)
					So(err, ShouldBeNil)
					So(events, ShouldHaveLength, 2)
				})
			})
		})
	})
}
