package sample

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
)

type stubValue struct{}

func (stubValue) Encode() ([]byte, error) { return []byte{0x01}, nil }

func TestFixtureSampleReplaysIndependently(t *testing.T) {
	tuples := []extract.Tuple{
		{VolumeID: 1, ChapterID: 0, Key: ids.RecordKey{0x01}, Value: stubValue{}},
		{VolumeID: 1, ChapterID: 0, Key: ids.RecordKey{0x02}, Value: stubValue{}},
	}
	f := NewFixture(tuples)

	first := f.Sample()
	t1, err := first.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, ids.RecordKey{0x01}, t1.Key)

	// A second Sample call starts a fresh Extractor from the beginning.
	second := f.Sample()
	t2, err := second.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, ids.RecordKey{0x01}, t2.Key)

	_, err = first.Next(context.Background())
	require.NoError(t, err)
	_, err = first.Next(context.Background())
	require.ErrorIs(t, err, extract.ErrRawSourceExhausted)
}
