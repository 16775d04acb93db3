package levels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMSourceReadPeakLevel(t *testing.T) {
	tests := []struct {
		name   string
		frames [][]int16
		wantDB float64
		wantOK bool
	}{
		{
			name:   "no data",
			frames: nil,
			wantOK: false,
		},
		{
			name:   "empty frame contributes nothing",
			frames: [][]int16{{}},
			wantOK: false,
		},
		{
			name:   "all zero frame reads negative infinity",
			frames: [][]int16{{0, 0, 0, 0}},
			wantDB: math.Inf(-1),
			wantOK: true,
		},
		{
			name:   "full scale sample reads zero dBFS",
			frames: [][]int16{{0, -32768, 12}},
			wantDB: 0,
			wantOK: true,
		},
		{
			name:   "half scale sample",
			frames: [][]int16{{16384}},
			wantDB: 20 * math.Log10(16384.0/32768.0),
			wantOK: true,
		},
		{
			name:   "peak survives across frames",
			frames: [][]int16{{100}, {-2000}, {50}},
			wantDB: 20 * math.Log10(2000.0/32768.0),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewPCMSource()
			for _, frame := range tt.frames {
				src.Write(frame)
			}

			db, ok := src.ReadPeakLevel()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantDB, db)
			}
		})
	}
}

func TestPCMSourceResetsAfterRead(t *testing.T) {
	src := NewPCMSource()
	src.Write([]int16{-32768})

	db, ok := src.ReadPeakLevel()
	require.True(t, ok)
	assert.Equal(t, 0.0, db)

	_, ok = src.ReadPeakLevel()
	assert.False(t, ok, "peak must not survive a read")

	src.Write([]int16{16384})
	db, ok = src.ReadPeakLevel()
	require.True(t, ok)
	assert.Less(t, db, 0.0)
}

func BenchmarkPCMSourceWrite(b *testing.B) {
	src := NewPCMSource()
	frame := make([]int16, 960)
	for i := range frame {
		frame[i] = int16(i - 480)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		src.Write(frame)
	}
}
