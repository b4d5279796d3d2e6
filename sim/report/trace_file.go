package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/city-sim/city-sim/sim/trace"
)

// WriteTrace writes records to path as zstd-compressed JSONL, one step
// record per line.
func WriteTrace(path string, records []trace.StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	for i := range records {
		b, err := json.Marshal(&records[i])
		if err != nil {
			_ = enc.Close()
			_ = f.Close()
			return fmt.Errorf("encoding step %d: %w", records[i].Step, err)
		}
		_, _ = w.Write(b)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("writing trace file: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("closing trace encoder: %w", err)
	}
	return f.Close()
}

// ReadTrace reads a trace written by WriteTrace.
func ReadTrace(path string) ([]trace.StepRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var records []trace.StepRecord
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r trace.StepRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decoding trace line %d: %w", len(records)+1, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}
	return records, nil
}
