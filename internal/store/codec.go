package store

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

// EncodeCounts writes a count table with the literal header, even when rows
// is empty.
func EncodeCounts(w io.Writer, rows []model.TokenCountRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(model.TokenCountRow{}); err != nil {
		return eris.Wrap(err, "store: encode count header")
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "store: encode count row %d", row.LineNum)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "store: flush counts")
}

// DecodeCounts reads a count table written by EncodeCounts.
func DecodeCounts(r io.Reader) ([]model.TokenCountRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, eris.New("store: count table has no header")
		}
		return nil, eris.Wrap(err, "store: read count header")
	}
	if !slices.Equal(dec.Header(), model.CountHeader) {
		return nil, eris.Errorf("store: unexpected count header %v", dec.Header())
	}

	rows := []model.TokenCountRow{}
	for {
		var row model.TokenCountRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "store: decode count row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EncodeRecords writes one payload per line.
func EncodeRecords(w io.Writer, payloads []json.RawMessage) error {
	bw := bufio.NewWriter(w)
	for _, p := range payloads {
		if bytes.ContainsAny(p, "\r\n") {
			var buf bytes.Buffer
			if err := json.Compact(&buf, p); err != nil {
				return eris.Wrap(err, "store: compact record")
			}
			p = buf.Bytes()
		}
		if _, err := bw.Write(p); err != nil {
			return eris.Wrap(err, "store: write record")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return eris.Wrap(err, "store: write record")
		}
	}
	return eris.Wrap(bw.Flush(), "store: flush records")
}

// DecodeRecords reads payloads written by EncodeRecords.
func DecodeRecords(r io.Reader) ([]json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)

	out := []json.RawMessage{}
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, json.RawMessage(bytes.Clone(line)))
	}
	return out, eris.Wrap(sc.Err(), "store: scan records")
}
