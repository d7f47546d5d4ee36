package judge_test

import (
	"testing"
	"time"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/internal/judge"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEngine_TeamAggregation(t *testing.T) {
	t0 := time.Unix(100, 0)
	devC := model.DeviceID("/dev/hidraw2")
	devD := model.DeviceID("/dev/hidraw3")

	newTeams := func() *judge.Engine {
		e := judge.New()
		e.AssignRound(
			map[string]string{"alice": "ねこ", "bob": "ねこ", "carol": "ねこ", "dave": "ねこ"},
			map[model.DeviceID]string{devA: "alice", devB: "bob", devC: "carol", devD: "dave"},
			map[string][]string{
				"red":  {"alice", "bob"},
				"blue": {"carol", "dave"},
			},
		)
		return e
	}

	complete := func(e *judge.Engine, dev model.DeviceID, at time.Time) {
		e.Judge(press(dev, 'ね', at))
		e.Judge(press(dev, 'こ', at))
	}

	Convey("Given a team with one member completed", t, func() {
		e := newTeams()
		complete(e, devA, t0)

		Convey("Then the team is not complete", func() {
			result, ok := e.TeamResult("ねこ", "red")
			So(ok, ShouldBeTrue)
			So(result.Complete, ShouldBeFalse)
			So(result.CompletedMembers, ShouldEqual, 1)
			So(result.TotalMembers, ShouldEqual, 2)
		})

		Convey("And once the last member finishes", func() {
			complete(e, devB, t0.Add(3*time.Second))

			Convey("Then the team completes at its slowest member's time", func() {
				result, _ := e.TeamResult("ねこ", "red")
				So(result.Complete, ShouldBeTrue)
				So(result.CompletedMembers, ShouldEqual, 2)
				So(result.CompletionTime, ShouldEqual, t0.Add(3*time.Second))
			})
		})
	})

	Convey("Given two teams where only one is fully complete", t, func() {
		e := newTeams()
		complete(e, devA, t0)
		complete(e, devB, t0.Add(2*time.Second))
		complete(e, devC, t0.Add(time.Second))
		// dave never finishes, so blue stays partial even though carol was fast

		Convey("Then the complete team wins regardless of member speed", func() {
			winner, found := e.WinningTeam("ねこ")
			So(found, ShouldBeTrue)
			So(winner.TeamID, ShouldEqual, "red")
		})
	})

	Convey("Given two fully complete teams", t, func() {
		e := newTeams()
		complete(e, devA, t0)
		complete(e, devB, t0.Add(5*time.Second))
		complete(e, devC, t0.Add(time.Second))
		complete(e, devD, t0.Add(2*time.Second))

		Convey("Then the smaller slowest-member time wins", func() {
			winner, found := e.WinningTeam("ねこ")
			So(found, ShouldBeTrue)
			So(winner.TeamID, ShouldEqual, "blue")
			So(winner.CompletionTime, ShouldEqual, t0.Add(2*time.Second))
		})
	})

	Convey("Given an unknown team", t, func() {
		e := newTeams()

		Convey("Then the query reports absence instead of failing", func() {
			_, ok := e.TeamResult("ねこ", "green")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEngine_Rankings(t *testing.T) {
	t0 := time.Unix(100, 0)

	Convey("Given three contestants at different stages", t, func() {
		devC := model.DeviceID("/dev/hidraw2")
		e := judge.New()
		e.AssignRound(
			map[string]string{"alice": "ねこねこ", "bob": "ねこねこ", "carol": "ねこねこ"},
			map[model.DeviceID]string{devA: "alice", devB: "bob", devC: "carol"},
			nil,
		)

		// carol completes, alice is half way, bob never starts typing
		for _, r := range "ねこねこ" {
			e.Judge(press(devC, r, t0.Add(time.Second)))
		}
		e.Judge(press(devA, 'ね', t0))
		e.Judge(press(devA, 'こ', t0))
		e.Judge(press(devB, 'x', t0)) // mismatch only

		Convey("Then completed sorts first, then descending progress", func() {
			standings := e.Rankings("ねこねこ")
			So(standings, ShouldHaveLength, 3)
			So(standings[0].ContestantID, ShouldEqual, "carol")
			So(standings[0].Completed, ShouldBeTrue)
			So(standings[0].Winner, ShouldBeTrue)
			So(standings[0].Rank, ShouldEqual, 1)
			So(standings[1].ContestantID, ShouldEqual, "alice")
			So(standings[1].Progress, ShouldEqual, 0.5)
			So(standings[2].ContestantID, ShouldEqual, "bob")
			So(standings[2].Progress, ShouldEqual, 0)
			So(standings[2].Errors, ShouldEqual, 1)
		})
	})

	Convey("Given contestants tied on progress", t, func() {
		e := judge.New()
		e.AssignRound(
			map[string]string{"alice": "ねこ", "bob": "ねこ"},
			map[model.DeviceID]string{devA: "alice", devB: "bob"},
			nil,
		)
		e.Judge(press(devB, 'ね', t0))
		e.Judge(press(devA, 'ね', t0))

		Convey("Then registration order breaks the tie stably", func() {
			standings := e.Rankings("ねこ")
			So(standings, ShouldHaveLength, 2)
			So(standings[0].ContestantID, ShouldEqual, "bob")
			So(standings[1].ContestantID, ShouldEqual, "alice")
		})
	})

	Convey("Given an unknown phrase", t, func() {
		e := judge.New()

		Convey("Then rankings are empty", func() {
			So(e.Rankings("missing"), ShouldBeEmpty)
		})
	})
}
