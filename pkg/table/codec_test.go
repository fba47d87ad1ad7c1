package table

import (
	"testing"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type CodecTestSuite struct {
	suite.Suite
	source *Table
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecTestSuite))
}

func (suite *CodecTestSuite) SetupTest() {
	suite.source = &Table{
		Schema: Schema{
			{Name: "date", Type: ColumnString},
			{Name: "symbol", Type: ColumnString},
			{Name: "close", Type: ColumnFloat},
			{Name: "volume", Type: ColumnInt},
			{Name: "adjusted", Type: ColumnBool},
		},
		Rows: [][]any{
			{"2023-01-03", "AAPL", 125.07, int64(112117500), true},
			{"2023-01-04", "AAPL", 126.36, int64(89113600), false},
		},
	}
}

// Round-trip law: decoding an encoded plan must evaluate to the same table as
// evaluating the plan directly.
func (suite *CodecTestSuite) TestPlanRoundTrip() {
	frame := NewFrame(suite.source).
		ParseDate("date", "2006-01-02", false).
		Filter("close", CmpGt, 125.5).
		Select("date", "close")
	plan := NewPlanResult(frame)

	want, err := plan.Collect()
	suite.Require().NoError(err)

	encoded, err := Encode(plan)
	suite.Require().NoError(err)

	decoded, err := Decode(encoded)
	suite.Require().NoError(err)
	suite.True(decoded.IsLazy())
	suite.Equal(KindPlan, decoded.Kind())

	got, err := decoded.Collect()
	suite.Require().NoError(err)
	suite.Equal(want.Schema, got.Schema)
	suite.Equal(want.Rows, got.Rows)
}

func (suite *CodecTestSuite) TestTableRoundTrip() {
	materialized := NewTableResult(suite.source)

	encoded, err := Encode(materialized)
	suite.Require().NoError(err)

	decoded, err := Decode(encoded)
	suite.Require().NoError(err)
	suite.False(decoded.IsLazy())
	suite.Equal(KindTable, decoded.Kind())

	got, err := decoded.Collect()
	suite.Require().NoError(err)
	suite.Equal(suite.source.Schema, got.Schema)
	suite.Equal(suite.source.Rows, got.Rows)
}

func (suite *CodecTestSuite) TestDateCellsSurviveRoundTrip() {
	frame := NewFrame(suite.source).ParseDate("date", "2006-01-02", false)

	collected, err := frame.Collect()
	suite.Require().NoError(err)

	encoded, err := Encode(NewTableResult(collected))
	suite.Require().NoError(err)

	decoded, err := Decode(encoded)
	suite.Require().NoError(err)

	got, err := decoded.Collect()
	suite.Require().NoError(err)
	suite.Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), got.Rows[0][0])
}

func (suite *CodecTestSuite) TestKindSurvivesSerialization() {
	plan := NewPlanResult(NewFrame(suite.source))
	encodedPlan, err := Encode(plan)
	suite.Require().NoError(err)

	encodedTable, err := Encode(NewTableResult(suite.source))
	suite.Require().NoError(err)

	decodedPlan, err := Decode(encodedPlan)
	suite.Require().NoError(err)
	suite.True(decodedPlan.IsLazy())

	decodedTable, err := Decode(encodedTable)
	suite.Require().NoError(err)
	suite.False(decodedTable.IsLazy())
}

func (suite *CodecTestSuite) TestDecodeRejectsBadEnvelopes() {
	valid, err := Encode(NewTableResult(suite.source))
	suite.Require().NoError(err)

	testCases := []struct {
		name     string
		payload  []byte
		wantCode errors.ErrorCode
	}{
		{
			name:     "too short",
			payload:  []byte("HM"),
			wantCode: errors.ErrCodeEnvelopeCorrupt,
		},
		{
			name:     "bad magic",
			payload:  append([]byte("XXXX"), valid[4:]...),
			wantCode: errors.ErrCodeEnvelopeCorrupt,
		},
		{
			name: "future version",
			payload: func() []byte {
				b := append([]byte(nil), valid...)
				b[4] = EnvelopeVersion + 1

				return b
			}(),
			wantCode: errors.ErrCodeEnvelopeVersionMismatch,
		},
		{
			name: "unknown kind",
			payload: func() []byte {
				b := append([]byte(nil), valid...)
				b[5] = 99

				return b
			}(),
			wantCode: errors.ErrCodeEnvelopeCorrupt,
		},
		{
			name:     "corrupt body",
			payload:  append(append([]byte(nil), valid[:6]...), []byte("{not json")...),
			wantCode: errors.ErrCodeDecodeFailed,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := Decode(tc.payload)
			suite.Error(err)
			suite.True(errors.HasCode(err, tc.wantCode), "got %v", err)
		})
	}
}

// A plan filtering on a parsed date column with a time value must survive the
// envelope: the filter value is restored to a time on decode, so the decoded
// plan collects to the same rows as direct evaluation.
func (suite *CodecTestSuite) TestTimeFilterValueSurvivesRoundTrip() {
	cutoff := time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)
	frame := NewFrame(suite.source).
		ParseDate("date", "2006-01-02", false).
		Filter("date", CmpGe, cutoff)
	plan := NewPlanResult(frame)

	want, err := plan.Collect()
	suite.Require().NoError(err)
	suite.Require().Equal(1, want.NumRows())

	encoded, err := Encode(plan)
	suite.Require().NoError(err)

	decoded, err := Decode(encoded)
	suite.Require().NoError(err)

	got, err := decoded.Collect()
	suite.Require().NoError(err)
	suite.Equal(want.Schema, got.Schema)
	suite.Equal(want.Rows, got.Rows)
}

func (suite *CodecTestSuite) TestDatetimeFilterValueSurvivesRoundTrip() {
	source := &Table{
		Schema: Schema{
			{Name: "ts", Type: ColumnDatetime},
			{Name: "close", Type: ColumnFloat},
		},
		Rows: [][]any{
			{time.Date(2023, 1, 3, 9, 30, 0, 0, time.UTC), 125.07},
			{time.Date(2023, 1, 3, 16, 0, 0, 0, time.UTC), 126.36},
		},
	}

	cutoff := time.Date(2023, 1, 3, 12, 0, 0, 0, time.UTC)
	plan := NewPlanResult(NewFrame(source).Filter("ts", CmpGt, cutoff))

	want, err := plan.Collect()
	suite.Require().NoError(err)
	suite.Require().Equal(1, want.NumRows())

	encoded, err := Encode(plan)
	suite.Require().NoError(err)

	decoded, err := Decode(encoded)
	suite.Require().NoError(err)

	got, err := decoded.Collect()
	suite.Require().NoError(err)
	suite.Equal(want.Rows, got.Rows)
}

// A time filter value on a column that is not a date or datetime cannot be
// represented in the payload and is rejected at encode time.
func (suite *CodecTestSuite) TestTimeFilterOnNonDateColumnRejected() {
	plan := NewPlanResult(NewFrame(suite.source).
		Filter("symbol", CmpEq, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)))

	_, err := Encode(plan)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEncodeFailed))
}
