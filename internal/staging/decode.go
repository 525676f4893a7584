package staging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ID accepts identifiers exported either as JSON strings or as numbers.
// Numbers keep their literal text so large ids are not rounded.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		*id = ID(data)
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Amount is a money value exported as a number, a numeric string, an empty
// string or null. The last two decode to zero.
type Amount decimal.Decimal

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount(decimal.Zero)
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*a = Amount(decimal.Zero)
			return nil
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount %s: %w", data, err)
	}
	*a = Amount(d)
	return nil
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// Count is a quantity exported as a number or numeric string. Absent
// counts are left for the caller to default.
type Count struct {
	Value int64
	Set   bool
}

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Count{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*c = Count{}
			return nil
		}
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*c = Count{Value: v, Set: true}
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("count %s: %w", data, err)
	}
	*c = Count{Value: d.IntPart(), Set: true}
	return nil
}

func (c Count) Or(fallback int64) int64 {
	if !c.Set {
		return fallback
	}
	return c.Value
}

// ReadResult holds the decoded records of one staged file.
type ReadResult[T any] struct {
	Records   []T
	Malformed int
}

// ReadFile decodes a staged export. The file may hold a top-level JSON array,
// a single object, or newline-delimited objects. Records that fail to decode
// are counted in Malformed and skipped.
func ReadFile[T any](path string) (ReadResult[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReadResult[T]{}, err
	}
	return Decode[T](data)
}

func Decode[T any](data []byte) (ReadResult[T], error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))
	if len(trimmed) == 0 {
		return ReadResult[T]{}, nil
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err == nil {
			return decodeRaws[T](raws), nil
		}
		// A broken array is retried line by line below.
	}

	if res, ok := decodeStream[T](trimmed); ok {
		return res, nil
	}
	return decodeLines[T](trimmed)
}

func decodeRaws[T any](raws []json.RawMessage) ReadResult[T] {
	res := ReadResult[T]{Records: make([]T, 0, len(raws))}
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			res.Malformed++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// decodeStream handles a single (possibly pretty printed) object as well as
// well-formed NDJSON. It reports false on the first syntax error.
func decodeStream[T any](data []byte) (ReadResult[T], bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raws []json.RawMessage
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ReadResult[T]{}, false
		}
		raws = append(raws, raw)
	}
	return decodeRaws[T](raws), true
}

func decodeLines[T any](data []byte) (ReadResult[T], error) {
	var res ReadResult[T]
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || bytes.Equal(line, []byte("[")) || bytes.Equal(line, []byte("]")) {
			continue
		}
		line = bytes.TrimSuffix(line, []byte(","))
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Malformed++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return ReadResult[T]{}, err
	}
	return res, nil
}
