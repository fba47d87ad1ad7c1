package table

import (
	"testing"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type FrameTestSuite struct {
	suite.Suite
	source *Table
}

func TestFrameSuite(t *testing.T) {
	suite.Run(t, new(FrameTestSuite))
}

func (suite *FrameTestSuite) SetupTest() {
	suite.source = &Table{
		Schema: Schema{
			{Name: "date", Type: ColumnString},
			{Name: "symbol", Type: ColumnString},
			{Name: "close", Type: ColumnFloat},
			{Name: "volume", Type: ColumnInt},
		},
		Rows: [][]any{
			{"2023-01-03", "AAPL", 125.07, int64(112117500)},
			{"2023-01-04", "AAPL", 126.36, int64(89113600)},
			{"2023-01-05", "AAPL", 125.02, int64(80962700)},
		},
	}
}

func (suite *FrameTestSuite) TestSelectProjectsAndReorders() {
	result, err := NewFrame(suite.source).Select("close", "date").Collect()
	suite.NoError(err)
	suite.Equal(Schema{
		{Name: "close", Type: ColumnFloat},
		{Name: "date", Type: ColumnString},
	}, result.Schema)
	suite.Equal([]any{125.07, "2023-01-03"}, result.Rows[0])
}

func (suite *FrameTestSuite) TestFilterKeepsMatchingRows() {
	result, err := NewFrame(suite.source).Filter("close", CmpGt, 125.05).Collect()
	suite.NoError(err)
	suite.Equal(2, result.NumRows())
}

func (suite *FrameTestSuite) TestFilterComparesIntAgainstFloat() {
	// A decoded plan carries filter values as float64; int columns must still match.
	result, err := NewFrame(suite.source).Filter("volume", CmpEq, float64(89113600)).Collect()
	suite.NoError(err)
	suite.Equal(1, result.NumRows())
	suite.Equal("2023-01-04", result.Rows[0][0])
}

func (suite *FrameTestSuite) TestSortDescendingIsStable() {
	result, err := NewFrame(suite.source).Sort("close", true).Collect()
	suite.NoError(err)
	suite.Equal(126.36, result.Rows[0][2])
	suite.Equal(125.02, result.Rows[2][2])
}

func (suite *FrameTestSuite) TestParseDateCoercesColumn() {
	frame := NewFrame(suite.source).ParseDate("date", "2006-01-02", false)

	schema, err := frame.Schema()
	suite.NoError(err)
	suite.Equal(ColumnDate, schema[0].Type)

	result, err := frame.Collect()
	suite.NoError(err)
	suite.Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), result.Rows[0][0])
}

func (suite *FrameTestSuite) TestSchemaDoesNotMaterialize() {
	// A filter on an unparseable value only fails at Collect time; Schema must
	// succeed because it never touches rows.
	frame := NewFrame(suite.source).
		Filter("close", CmpGt, "not-a-number").
		Select("close")

	schema, err := frame.Schema()
	suite.NoError(err)
	suite.Equal(Schema{{Name: "close", Type: ColumnFloat}}, schema)

	_, err = frame.Collect()
	suite.Error(err)
}

func (suite *FrameTestSuite) TestUnknownColumnFails() {
	_, err := NewFrame(suite.source).Select("nope").Collect()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *FrameTestSuite) TestCollectDoesNotMutateSource() {
	_, err := NewFrame(suite.source).
		ParseDate("date", "2006-01-02", false).
		Sort("close", true).
		Collect()
	suite.NoError(err)

	// Source still holds raw strings in the original order.
	suite.Equal("2023-01-03", suite.source.Rows[0][0])
}

func (suite *FrameTestSuite) TestLazyResultTagging() {
	plan := NewPlanResult(NewFrame(suite.source).Select("symbol"))
	suite.True(plan.IsLazy())
	suite.Equal(KindPlan, plan.Kind())

	materialized := NewTableResult(suite.source)
	suite.False(materialized.IsLazy())

	collected, err := plan.Collect()
	suite.NoError(err)
	suite.Equal(3, collected.NumRows())
	suite.Equal([]string{"symbol"}, collected.Schema.Names())
}

func (suite *FrameTestSuite) TestTableColumn() {
	values, err := suite.source.Column("symbol")
	suite.NoError(err)
	suite.Equal([]any{"AAPL", "AAPL", "AAPL"}, values)

	_, err = suite.source.Column("missing")
	suite.Error(err)
}
