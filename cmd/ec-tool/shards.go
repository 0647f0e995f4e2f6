package main

import (
	"fmt"
	"io"
	"os"

	"github.com/journeymidnight/ecplanner/erasure_code"
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
)

// ToExt names the shard file holding block index ecIndex of every stripe.
func ToExt(ecIndex int) string {
	return fmt.Sprintf(".ec%02d", ecIndex)
}

func openShardFiles(base string, indexes []int, flag int) ([]*os.File, error) {
	files := make([]*os.File, 0, len(indexes))
	for _, idx := range indexes {
		fname := base + ToExt(idx)
		f, err := os.OpenFile(fname, flag, 0644)
		if err != nil {
			closeShardFiles(files)
			return nil, errors.Wrapf(err, "failed to open shard file %s", fname)
		}
		files = append(files, f)
	}
	return files, nil
}

func closeShardFiles(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

func indexRange(from, to int) []int {
	ret := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		ret = append(ret, i)
	}
	return ret
}

// encodeFile splits input into stripes of d chunks and writes block i of
// every stripe to base.ecNN. The last stripe is zero padded. It returns the
// number of stripes written.
func encodeFile(coder *erasure_code.Coder, input io.Reader, base string) (int, error) {
	schema, err := coder.Schema()
	if err != nil {
		return 0, err
	}
	raw, err := coder.RawCodec()
	if err != nil {
		return 0, err
	}
	d, p, chunk := schema.NumDataUnits(), schema.NumParityUnits(), schema.ChunkSize()

	step, err := coder.CalculateCoding(erasure_code.NewEncodingGroup(d, p))
	if err != nil {
		return 0, err
	}

	files, err := openShardFiles(base, indexRange(0, d+p), os.O_TRUNC|os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return 0, err
	}
	defer closeShardFiles(files)

	chunks := erasure_code.NewChunks(d+p, chunk)
	stripe := make([]byte, d*chunk)
	stripes := 0
	for {
		n, err := io.ReadFull(input, stripe)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return stripes, errors.Wrapf(err, "read stripe %d", stripes)
		}
		for i := n; i < len(stripe); i++ {
			stripe[i] = 0
		}
		for i := 0; i < d; i++ {
			copy(chunks[i], stripe[i*chunk:(i+1)*chunk])
		}
		if err := erasure_code.ExecuteStep(step, raw, chunks[:d], chunks[d:]); err != nil {
			return stripes, err
		}
		for i, f := range files {
			if _, err := f.Write(chunks[i]); err != nil {
				return stripes, errors.Wrapf(err, "write %s", f.Name())
			}
		}
		stripes++
		if n < len(stripe) {
			break
		}
	}
	xlog.Logger.Infof("encoded %d stripes of %s into %s.ec*", stripes, schema, base)
	return stripes, nil
}

// missingShards lists the shard files of base that do not exist.
func missingShards(base string, numAllUnits int) ([]int, error) {
	var missing []int
	for i := 0; i < numAllUnits; i++ {
		_, err := os.Stat(base + ToExt(i))
		if os.IsNotExist(err) {
			missing = append(missing, i)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return missing, nil
}

// reconstructFiles rebuilds the shard files listed in missing from the
// surviving ones, stripe by stripe. It returns the number of stripes
// rebuilt.
func reconstructFiles(coder *erasure_code.Coder, base string, missing []int) (int, error) {
	schema, err := coder.Schema()
	if err != nil {
		return 0, err
	}
	raw, err := coder.RawCodec()
	if err != nil {
		return 0, err
	}
	d, p, chunk := schema.NumDataUnits(), schema.NumParityUnits(), schema.ChunkSize()
	for _, idx := range missing {
		if idx >= d+p {
			return 0, errors.Wrapf(wire_errors.InvalidBlockGroup, "shard %d out of range for %s", idx, schema)
		}
	}

	step, err := coder.CalculateCoding(erasure_code.NewDecodingGroup(d, p, missing...))
	if err != nil {
		return 0, err
	}
	if len(step.OutputBlocks()) == 0 {
		return 0, nil
	}

	inputs, err := openShardFiles(base, step.InputIndexes(), os.O_RDONLY)
	if err != nil {
		return 0, err
	}
	defer closeShardFiles(inputs)

	size := int64(-1)
	for _, f := range inputs {
		fi, err := f.Stat()
		if err != nil {
			return 0, err
		}
		if size >= 0 && fi.Size() != size {
			return 0, errors.Errorf("shard %s has %d bytes, expect %d", f.Name(), fi.Size(), size)
		}
		size = fi.Size()
	}
	if size%int64(chunk) != 0 {
		return 0, errors.Errorf("shard size %d is not a multiple of chunk size %d", size, chunk)
	}

	outputs, err := openShardFiles(base, step.OutputIndexes(), os.O_TRUNC|os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return 0, err
	}
	defer closeShardFiles(outputs)

	in := erasure_code.NewChunks(len(inputs), chunk)
	out := erasure_code.NewChunks(len(outputs), chunk)
	stripes := int(size / int64(chunk))
	for s := 0; s < stripes; s++ {
		offset := int64(s) * int64(chunk)
		for i, f := range inputs {
			if _, err := f.ReadAt(in[i], offset); err != nil {
				return s, errors.Wrapf(err, "read %s at %d", f.Name(), offset)
			}
		}
		if err := erasure_code.ExecuteStep(step, raw, in, out); err != nil {
			return s, err
		}
		for i, f := range outputs {
			if _, err := f.Write(out[i]); err != nil {
				return s, errors.Wrapf(err, "write %s", f.Name())
			}
		}
	}
	xlog.Logger.Infof("rebuilt shards %v of %s from %v", step.OutputIndexes(), base, step.InputIndexes())
	return stripes, nil
}
