package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func TestSaveParquet(t *testing.T) {
	path, err := SaveParquet(t.TempDir(), testTrack())
	require.NoError(t, err)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(sampleRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	require.Equal(t, 3, n)

	rows := make([]sampleRow, n)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, "2024-06-01T08:15:30Z", rows[0].TSUTCISO)
	assert.InDelta(t, 2.5, rows[2].ElapsedS, 1e-9)
	assert.Equal(t, 21.6, rows[1].SpeedKmh)
	assert.Greater(t, rows[2].DistanceM, rows[1].DistanceM)
}
