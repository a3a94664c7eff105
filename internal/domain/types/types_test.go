package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	types "github.com/okian/quorum/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRequestID(t *testing.T) {
	Convey("Given request ids", t, func() {
		Convey("When rendering an id", func() {
			So(types.RequestID(42).String(), ShouldEqual, "42")
		})

		Convey("When parsing a valid id", func() {
			id, err := types.ParseRequestID("17")

			Convey("Then it should round-trip", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, types.RequestID(17))
			})
		})

		Convey("When parsing zero, negatives or garbage", func() {
			for _, in := range []string{"0", "-1", "abc", ""} {
				_, err := types.ParseRequestID(in)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestRequestSnapshot(t *testing.T) {
	Convey("Given a request snapshot", t, func() {
		v := types.Value(1567)
		req := types.Request{
			ID:     3,
			Status: types.StatusFinalized,
			Submissions: []types.Submission{
				{ProviderID: "a", Value: 1505, Index: 0},
				{ProviderID: "b", Value: 1567, Index: 1},
				{ProviderID: "c", Value: 1700, Index: 2},
			},
			FinalizedValue: &v,
		}

		Convey("Then Values keeps arrival order", func() {
			So(req.Values(), ShouldResemble, []types.Value{1505, 1567, 1700})
		})

		Convey("Then the status is encoded by name", func() {
			raw, err := json.Marshal(req)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"status":"finalized"`)
			So(string(raw), ShouldContainSubstring, `"finalized_value":1567`)
		})
	})

	Convey("Given status values", t, func() {
		So(types.StatusOpen.String(), ShouldEqual, "open")
		So(types.StatusFinalized.String(), ShouldEqual, "finalized")
		So(types.Status(9).String(), ShouldEqual, "unknown")
	})
}

func TestErrors(t *testing.T) {
	Convey("Given an operation error", t, func() {
		err := types.NewKind("store.record", types.ErrDuplicateSubmission)

		Convey("Then it matches its kind", func() {
			So(errors.Is(err, types.ErrDuplicateSubmission), ShouldBeTrue)
			So(errors.Is(err, types.ErrRequestClosed), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "store.record: duplicate submission")
		})

		Convey("Then kind and reason are recoverable after wrapping", func() {
			wrapped := fmt.Errorf("submit: %w", err)
			So(types.KindOf(wrapped), ShouldEqual, types.ErrDuplicateSubmission)
			So(types.Reason(wrapped), ShouldEqual, "duplicate_submission")
		})
	})

	Convey("Given a wrapped cause", t, func() {
		cause := errors.New("boom")
		err := types.WrapKind("aggregate", types.ErrEmptyInput, cause)

		Convey("Then both kind and cause match", func() {
			So(errors.Is(err, types.ErrEmptyInput), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "aggregate: empty input: boom")
		})
	})

	Convey("Given a foreign error", t, func() {
		err := errors.New("disk full")
		So(types.KindOf(err), ShouldBeNil)
		So(types.Reason(err), ShouldEqual, "internal")
	})
}
