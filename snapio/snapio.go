/*package snapio reads and writes body snapshots and initial conditions.
Snapshots are per-rank binary files: a leading endianness flag and a fixed
header, followed by a zstd-compressed block of body records. Files of either
endianness can be read back on any machine.*/
package snapio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/geom"
)

const (
	// Endianness flag values, written as the first int32 of every file.
	bigEndianFlag    int32 = 0
	littleEndianFlag int32 = -1

	// Version identifies breaking changes to the snapshot layout.
	Version int64 = 1
)

// Header is the uncompressed metadata block of a snapshot file.
type Header struct {
	Version int64
	// RunID tags every snapshot of one run with the same random UUID, so
	// shards from different runs can never be mixed up silently.
	RunID uuid.UUID
	// Iter is the iteration the snapshot was taken at.
	Iter int64
	// Count is the number of body records in this shard; Rank and Ranks
	// identify the shard within the run.
	Count       int64
	Rank, Ranks int64
	// HMax and Domain record the reduction results the decomposition was
	// built from, so analysis tools need not recompute them.
	HMax   float64
	Domain geom.Bounds
}

// NewRunID returns a fresh run tag for WriteBodies headers.
func NewRunID() uuid.UUID { return uuid.New() }

// WriteBodies writes one rank's bodies to path. The header's Version and
// Count fields are set here; everything else is the caller's.
func WriteBodies(path string, hdr Header, bodies []sphpart.Body) error {
	hdr.Version = Version
	hdr.Count = int64(len(bodies))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Write(f, order, littleEndianFlag); err != nil {
		return err
	}
	if err := binary.Write(f, order, &hdr); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := binary.Write(enc, order, bodies); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadBodies reads a snapshot shard written by WriteBodies.
func ReadBodies(path string) (Header, []sphpart.Body, error) {
	hdr := Header{}

	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, err
	}
	defer f.Close()

	var flag int32
	if err := binary.Read(f, binary.LittleEndian, &flag); err != nil {
		return hdr, nil, fmt.Errorf("%s: unreadable endianness flag: %w",
			path, err)
	}
	var order binary.ByteOrder
	switch flag {
	case littleEndianFlag:
		order = binary.LittleEndian
	case bigEndianFlag:
		order = binary.BigEndian
	default:
		return hdr, nil, fmt.Errorf(
			"%s is not a snapshot file: endianness flag = %d.", path, flag)
	}

	if err := binary.Read(f, order, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("%s: unreadable header: %w", path, err)
	}
	if hdr.Version != Version {
		return hdr, nil, fmt.Errorf(
			"%s has snapshot version %d, but this build reads version %d.",
			path, hdr.Version, Version)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return hdr, nil, err
	}
	defer dec.Close()

	bodies := make([]sphpart.Body, hdr.Count)
	if err := binary.Read(dec, order, bodies); err != nil {
		return hdr, nil, fmt.Errorf("%s: unreadable body block: %w", path, err)
	}
	return hdr, bodies, nil
}

// ShardName returns the canonical file name of one rank's shard of one
// iteration's snapshot.
func ShardName(dir, tag string, iter, rank int) string {
	return fmt.Sprintf("%s/%s_it%05d.r%04d.sph", dir, tag, iter, rank)
}
