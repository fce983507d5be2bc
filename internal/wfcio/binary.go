// Package wfcio persists chunk state to disk and parses the textual
// constraint authoring format (spec §6 External Interfaces). The binary
// dump format mirrors the teacher's disk column format
// (chunk-server/internal/world/storage_disk.go): a small fixed header
// written uncompressed so a reader can validate it cheaply, followed by a
// zlib-compressed body, using encoding/binary for every fixed-width field
// the way the teacher's index file does.
package wfcio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/firestar-voxel/wfcterrain/internal/coords"
	"github.com/firestar-voxel/wfcterrain/internal/wfc"
)

var magic = [4]byte{'W', 'F', 'C', 'X'}

const formatVersion uint16 = 1

// ChunkRecord is the rehydrated content of one dumped chunk: enough to
// rebuild a wfc.CellGrid without replaying the collapse that produced it.
type ChunkRecord struct {
	Coord     coords.ChunkCoord
	Side      int
	NumStates int
	LODLevel  int
	Possible  []wfc.PossibleSet // flat, same order as CellGrid
}

// DumpChunk writes chunk's current cell state to w.
func DumpChunk(w io.Writer, chunk *wfc.Chunk) error {
	side := chunk.Grid.Side()

	var body bytes.Buffer
	for i := 0; i < chunk.Grid.Len(); i++ {
		cell, _ := chunk.Grid.GetByIndex(i)
		states := cell.Possible.States()
		writeUvarint(&body, uint64(len(states)))
		for _, s := range states {
			writeUvarint(&body, uint64(s))
		}
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body.Bytes()); err != nil {
		return fmt.Errorf("compress chunk body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush chunk body: %w", err)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := struct {
		Version   uint16
		Side      uint32
		NumStates uint32
		LODLevel  uint32
		CoordX    int32
		CoordY    int32
		CoordZ    int32
		BodyLen   uint32
	}{
		Version:   formatVersion,
		Side:      uint32(side),
		NumStates: uint32(chunk.NumStates),
		LODLevel:  uint32(chunk.LODLevel),
		CoordX:    int32(chunk.Coord.X),
		CoordY:    int32(chunk.Coord.Y),
		CoordZ:    int32(chunk.Coord.Z),
		BodyLen:   uint32(compressed.Len()),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("write chunk body: %w", err)
	}
	return nil
}

// LoadChunk reads a dump written by DumpChunk.
func LoadChunk(r io.Reader) (*ChunkRecord, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("not a chunk dump: bad magic %q", gotMagic)
	}

	var header struct {
		Version   uint16
		Side      uint32
		NumStates uint32
		LODLevel  uint32
		CoordX    int32
		CoordY    int32
		CoordZ    int32
		BodyLen   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read chunk header: %w", err)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("unsupported chunk dump version %d", header.Version)
	}

	compressed := make([]byte, header.BodyLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("read chunk body: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open chunk body: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate chunk body: %w", err)
	}

	side := int(header.Side)
	numStates := int(header.NumStates)
	count := side * side * side
	record := &ChunkRecord{
		Coord:     coords.ChunkCoord{X: int(header.CoordX), Y: int(header.CoordY), Z: int(header.CoordZ)},
		Side:      side,
		NumStates: numStates,
		LODLevel:  int(header.LODLevel),
		Possible:  make([]wfc.PossibleSet, count),
	}

	reader := bytes.NewReader(body)
	for i := 0; i < count; i++ {
		n, err := readUvarint(reader)
		if err != nil {
			return nil, fmt.Errorf("read cell %d possible count: %w", i, err)
		}
		ps := wfc.NewPossibleSet(numStates)
		for j := uint64(0); j < n; j++ {
			s, err := readUvarint(reader)
			if err != nil {
				return nil, fmt.Errorf("read cell %d state %d: %w", i, j, err)
			}
			ps.Add(coords.State(s))
		}
		record.Possible[i] = ps
	}
	return record, nil
}

// Restore rebuilds a wfc.Chunk from a dump, overwriting every cell's
// possible set via CellGrid.SetPossible rather than replaying the
// collapse sequence that originally produced it.
func Restore(record *ChunkRecord, maxIterations int, constraintInfluence float64) *wfc.Chunk {
	chunk := wfc.NewChunk(record.Coord, record.Side, record.NumStates, record.LODLevel, maxIterations, constraintInfluence)
	for i, ps := range record.Possible {
		chunk.Grid.SetPossible(i, ps)
	}
	return chunk
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}
