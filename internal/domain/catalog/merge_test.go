package catalog_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lacunalabels/maskgen/internal/domain/catalog"
	"github.com/lacunalabels/maskgen/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func annotations() *catalog.Table {
	return &catalog.Table{
		Columns: []string{"name", "Class", "assignment_id", "Labeller", "status", "Score", "N", "Area", "Qscore", "Rscore", "x", "y", "farea", "nflds"},
		Rows: [][]string{
			{"S100", "field", "1b", "L1", "Trusted", "0.8", "2", "10.5", "0.7", "0.7", "1.5", "7.25", "3.2", "4"},
			{"S100", "field", "1d", "L2", "Trusted", "0.9", "2", "10.5", "0.8", "0.9", "1.5", "7.25", "3.4", "5"},
			{"S200", "field", "4", "L3", "Untrusted", "", "1", "8", "NA", "0.2", "2.5", "6.5", "", "0"},
			{"S300", "field", "2", "L1", "Trusted", "0.5", "1", "9", "0.5", "0.5", "3.5", "5.5", "1", "1"},
		},
	}
}

func chipIndex() *catalog.Table {
	return &catalog.Table{
		Columns: []string{"name", "image_date", "image", "chip"},
		Rows: [][]string{
			{"S100", "2021-01-01", "S100_2021.tif", "S100_chip.tif"},
			{"S200", "2021-02-01", "S200_2021.tif", "S200_chip.tif"},
			{"S400", "2021-03-01", "S400_2021.tif", "S400_chip.tif"},
		},
	}
}

func TestMerge(t *testing.T) {
	Convey("Given an annotation table and a chip index", t, func() {
		Convey("When merging with the default column set", func() {
			merged, err := catalog.Merge(annotations(), chipIndex(), catalog.DefaultDropColumns, catalog.DefaultKeepColumns)

			Convey("Then rows without a chip are dropped and order is kept", func() {
				So(err, ShouldBeNil)
				So(merged.Columns, ShouldResemble, catalog.DefaultKeepColumns)
				So(merged.Len(), ShouldEqual, 3)
				So(merged.Rows[0][merged.Index("assignment_id")], ShouldEqual, "1b")
				So(merged.Rows[1][merged.Index("assignment_id")], ShouldEqual, "1d")
				So(merged.Rows[2][merged.Index("name")], ShouldEqual, "S200")
				So(merged.Rows[2][merged.Index("chip")], ShouldEqual, "S200_chip.tif")
				So(merged.Index("image_date"), ShouldEqual, -1)
			})
		})

		Convey("When the chip index repeats a key", func() {
			chips := chipIndex()
			chips.Rows = append(chips.Rows, []string{"S100", "2022-01-01", "S100_2022.tif", "S100_b.tif"})
			_, err := catalog.Merge(annotations(), chips, catalog.DefaultDropColumns, catalog.DefaultKeepColumns)

			Convey("Then the ambiguous join is refused", func() {
				So(errors.Is(err, catalog.ErrJoin), ShouldBeTrue)
			})
		})

		Convey("When the tables share no columns", func() {
			chips := &catalog.Table{Columns: []string{"site", "image"}, Rows: [][]string{{"S100", "a.tif"}}}
			_, err := catalog.Merge(annotations(), chips, nil, catalog.DefaultKeepColumns)

			Convey("Then a join error is returned", func() {
				So(errors.Is(err, catalog.ErrJoin), ShouldBeTrue)
			})
		})

		Convey("When a kept column is missing after the join", func() {
			chips := chipIndex().Drop([]string{"chip"})
			_, err := catalog.Merge(annotations(), chips, catalog.DefaultDropColumns, catalog.DefaultKeepColumns)

			Convey("Then a schema error names the column", func() {
				So(errors.Is(err, catalog.ErrSchema), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "chip")
			})
		})
	})
}

func TestNewTable(t *testing.T) {
	Convey("Given ragged rows", t, func() {
		_, err := catalog.NewTable([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})

		Convey("Then the table is rejected", func() {
			So(errors.Is(err, catalog.ErrSchema), ShouldBeTrue)
		})
	})

	Convey("Given duplicate column names", t, func() {
		_, err := catalog.NewTable([]string{"a", "a"}, nil)

		Convey("Then the table is rejected", func() {
			So(errors.Is(err, catalog.ErrSchema), ShouldBeTrue)
		})
	})
}

func TestToAssignments(t *testing.T) {
	Convey("Given a merged table", t, func() {
		merged, err := catalog.Merge(annotations(), chipIndex(), catalog.DefaultDropColumns, catalog.DefaultKeepColumns)
		So(err, ShouldBeNil)

		Convey("When converting to assignments", func() {
			records, err := catalog.ToAssignments(merged)

			Convey("Then typed fields are populated", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 3)

				first := records[0]
				want := []any{"S100", "1b", "L1", "Trusted", 0.7, 4.0, "S100_2021.tif", "S100_chip.tif"}
				got := []any{first.Name, first.AssignmentID, first.Labeller, first.Status, first.Rscore, first.NFlds, first.Image, first.Chip}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("assignment mismatch (-want +got):\n%s", diff)
				}
			})

			Convey("Then empty and NA cells become NaN", func() {
				So(err, ShouldBeNil)
				So(math.IsNaN(records[2].Score), ShouldBeTrue)
				So(math.IsNaN(records[2].Qscore), ShouldBeTrue)
				So(math.IsNaN(records[2].FArea), ShouldBeTrue)
			})
		})

		Convey("When a numeric cell is malformed", func() {
			merged.Rows[0][merged.Index("Rscore")] = "high"
			_, err := catalog.ToAssignments(merged)

			Convey("Then a schema error is returned", func() {
				So(errors.Is(err, catalog.ErrSchema), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Rscore")
			})
		})

		Convey("When a required column is absent", func() {
			_, err := catalog.ToAssignments(merged.Drop([]string{"status"}))

			Convey("Then a schema error is returned", func() {
				So(errors.Is(err, catalog.ErrSchema), ShouldBeTrue)
			})
		})
	})
}

func TestCells(t *testing.T) {
	Convey("Given an assignment with a missing score", t, func() {
		a := model.Assignment{
			Name: "S1", Class: "crop", AssignmentID: "1a", Labeller: "L", Status: "Trusted",
			Score: math.NaN(), N: 3, Area: 1.5, Qscore: 0.25, Rscore: 0.8,
			X: 10, Y: -2.5, FArea: 0.4, NFlds: 2, Image: "i.tif", Chip: "c.tif",
		}

		Convey("When it is rendered", func() {
			cells := catalog.Cells(&a)

			Convey("Then cells follow the keep columns and NaN is blank", func() {
				So(len(cells), ShouldEqual, len(catalog.DefaultKeepColumns))
				want := []string{"S1", "crop", "1a", "L", "Trusted", "", "3", "1.5", "0.25", "0.8", "10", "-2.5", "0.4", "2", "i.tif", "c.tif"}
				if diff := cmp.Diff(want, cells); diff != "" {
					t.Errorf("cells mismatch (-want +got):\n%s", diff)
				}
			})
		})
	})
}
