package heap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heapkit/heapfiledb/page"
)

func TestFilteredScanIntegerEQ(t *testing.T) {
	dm, bm, pageSize := newEnv(t, 512, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))

	ins, err := NewInsertFileScan(dm, bm, "t", pageSize)
	require.NoError(t, err)

	var wantRID page.RID
	for _, v := range []int32{1, 2, 3, 4, 5} {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		rid, err := ins.InsertRecord(buf)
		require.NoError(t, err)
		if v == 3 {
			wantRID = rid
		}
	}
	require.NoError(t, ins.Close())

	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	defer scan.EndScan()

	filter := make([]byte, 4)
	binary.LittleEndian.PutUint32(filter, uint32(3))
	require.NoError(t, scan.StartScan(0, 4, AttrInteger, EQ, filter))

	rid, err := scan.ScanNext()
	require.NoError(t, err)
	require.Equal(t, wantRID, rid)

	_, err = scan.ScanNext()
	require.ErrorIs(t, err, ErrFileEOF)
}

func TestUnfilteredScanVisitsEveryInsertedRecord(t *testing.T) {
	dm, bm, pageSize := newEnv(t, 256, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))

	ins, err := NewInsertFileScan(dm, bm, "t", pageSize)
	require.NoError(t, err)
	recSize := (pageSize-page.DPFIXED)/2 + 1
	const n = 5
	inserted := make(map[page.RID]bool, n)
	for i := 0; i < n; i++ {
		rec := make([]byte, recSize)
		rec[0] = byte(i)
		rid, err := ins.InsertRecord(rec)
		require.NoError(t, err)
		inserted[rid] = true
	}
	require.NoError(t, ins.Close())

	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	require.NoError(t, scan.StartScan(0, 0, AttrString, EQ, nil))

	seen := 0
	for {
		rid, err := scan.ScanNext()
		if err != nil {
			require.ErrorIs(t, err, ErrFileEOF)
			break
		}
		require.True(t, inserted[rid])
		seen++
	}
	require.Equal(t, n, seen)
	require.NoError(t, scan.EndScan())
}

func TestMarkResetAcrossPageBoundary(t *testing.T) {
	dm, bm, pageSize := newEnv(t, 256, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))

	ins, err := NewInsertFileScan(dm, bm, "t", pageSize)
	require.NoError(t, err)
	recSize := (pageSize-page.DPFIXED)/2 + 1
	const n = 4
	for i := 0; i < n; i++ {
		_, err := ins.InsertRecord(make([]byte, recSize))
		require.NoError(t, err)
	}
	require.NoError(t, ins.Close())

	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	defer scan.EndScan()
	require.NoError(t, scan.StartScan(0, 0, AttrString, EQ, nil))

	first, err := scan.ScanNext()
	require.NoError(t, err)
	second, err := scan.ScanNext()
	require.NoError(t, err)
	require.NotEqual(t, first.PageNo, second.PageNo, "each page holds exactly one such record")

	scan.MarkScan()
	third, err := scan.ScanNext()
	require.NoError(t, err)
	_, err = scan.ScanNext()
	require.NoError(t, err)

	require.NoError(t, scan.ResetScan())
	replay, err := scan.ScanNext()
	require.NoError(t, err)
	require.Equal(t, third, replay, "reset replays the same sequence scanNext would have produced from the mark")
}

func TestMarkDoesNotSurviveEndScan(t *testing.T) {
	dm, bm, pageSize := newEnv(t, 256, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))

	ins, err := NewInsertFileScan(dm, bm, "t", pageSize)
	require.NoError(t, err)
	_, err = ins.InsertRecord([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, ins.Close())

	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	require.NoError(t, scan.StartScan(0, 0, AttrString, EQ, nil))

	_, err = scan.ScanNext()
	require.NoError(t, err)
	scan.MarkScan()
	require.NoError(t, scan.EndScan())

	require.ErrorIs(t, scan.ResetScan(), ErrNoMark, "EndScan must clear any outstanding mark")
}

func TestDeleteDuringScanDrainsFile(t *testing.T) {
	dm, bm, pageSize := newEnv(t, 256, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))

	ins, err := NewInsertFileScan(dm, bm, "t", pageSize)
	require.NoError(t, err)
	recSize := (pageSize-page.DPFIXED)/2 + 1
	const n = 5
	for i := 0; i < n; i++ {
		_, err := ins.InsertRecord(make([]byte, recSize))
		require.NoError(t, err)
	}
	require.NoError(t, ins.Close())

	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	require.NoError(t, scan.StartScan(0, 0, AttrString, EQ, nil))
	deleted := 0
	for {
		_, err := scan.ScanNext()
		if err != nil {
			require.ErrorIs(t, err, ErrFileEOF)
			break
		}
		require.NoError(t, scan.DeleteRecord())
		deleted++
	}
	require.Equal(t, n, deleted)
	require.NoError(t, scan.EndScan())
	require.NoError(t, scan.Close())

	hf, err := Open(dm, bm, "t")
	require.NoError(t, err)
	require.Equal(t, int32(0), hf.GetRecCnt())
	require.NoError(t, hf.Close())

	fresh, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	require.NoError(t, fresh.StartScan(0, 0, AttrString, EQ, nil))
	_, err = fresh.ScanNext()
	require.ErrorIs(t, err, ErrFileEOF)
	require.NoError(t, fresh.EndScan())
}

func TestStartScanValidatesParams(t *testing.T) {
	dm, bm, _ := newEnv(t, 256, 8)
	require.NoError(t, CreateHeapFile(dm, bm, "t"))
	scan, err := NewHeapFileScan(dm, bm, "t")
	require.NoError(t, err)
	defer scan.EndScan()

	require.ErrorIs(t, scan.StartScan(-1, 4, AttrInteger, EQ, []byte{0, 0, 0, 0}), ErrBadScanParm)
	require.ErrorIs(t, scan.StartScan(0, 2, AttrInteger, EQ, []byte{0, 0}), ErrBadScanParm)
	require.ErrorIs(t, scan.StartScan(0, 4, AttrInteger, FilterOp(99), []byte{0, 0, 0, 0}), ErrBadScanParm)
}
