package sum

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	// ErrNotObject reports a payload that decoded to something other than an object.
	ErrNotObject = errors.New("payload is not a JSON object")
	// ErrNonFiniteSum reports a field or sum outside float64 range; JSON cannot carry it.
	ErrNonFiniteSum = errors.New("sum is not a finite number")
	// ErrNoMatch is the cause attached to failures for payloads without prefixed fields.
	ErrNoMatch = errors.New("no fields match the input key")
)

// payloadAPI keeps numbers as json.Number so coercion sees the literal.
var payloadAPI = sonic.Config{UseNumber: true}.Froze()

// floatLiteral always encodes with a fractional part: 30 is written as 30.0.
type floatLiteral float64

func (f floatLiteral) MarshalJSON() ([]byte, error) {
	text := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return []byte(text), nil
}

// Payload is a flat field-to-value mapping; only top-level entries are inspected.
type Payload map[string]any

type Outcome string

const (
	OutcomeProduced    Outcome = "produced"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeDecodeError Outcome = "decode_error"
)

// Result is the tagged outcome of one aggregation. Payload and Data are set
// only for OutcomeProduced, Err only for OutcomeDecodeError.
type Result struct {
	Outcome Outcome
	Payload Payload
	Data    string
	Err     error
}

func (r Result) Produced() bool {
	return r.Outcome == OutcomeProduced
}

// Aggregator sums prefixed fields using the keys it was built with.
// It holds no mutable state and may be shared between goroutines.
type Aggregator struct {
	inputPrefix string
	outputKey   string
}

func NewAggregator(inputPrefix, outputKey string) *Aggregator {
	return &Aggregator{inputPrefix: inputPrefix, outputKey: outputKey}
}

func (a *Aggregator) InputPrefix() string { return a.inputPrefix }

func (a *Aggregator) OutputKey() string { return a.outputKey }

func (a *Aggregator) Aggregate(payload []byte) Result {
	return Aggregate(payload, a.inputPrefix, a.outputKey)
}

// Aggregate sums every top-level field of payload whose name starts with
// inputPrefix and returns {outputKey: sum}. Values that are not JSON numbers
// count as 0. Neither key is validated: an empty prefix matches every field.
func Aggregate(payload []byte, inputPrefix, outputKey string) Result {
	fields, err := decodeObject(payload)
	if err != nil {
		return Result{Outcome: OutcomeDecodeError, Err: err}
	}

	// Fixed order keeps float rounding identical between runs.
	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.HasPrefix(name, inputPrefix) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Result{Outcome: OutcomeNoMatch}
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		value, err := asDouble(fields[name])
		if err != nil {
			return Result{Outcome: OutcomeDecodeError, Err: fmt.Errorf("field %q: %w", name, err)}
		}
		total += value
	}
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return Result{Outcome: OutcomeDecodeError, Err: ErrNonFiniteSum}
	}

	out := Payload{outputKey: total}
	data, err := payloadAPI.Marshal(map[string]floatLiteral{outputKey: floatLiteral(total)})
	if err != nil {
		return Result{Outcome: OutcomeDecodeError, Err: fmt.Errorf("encode payload: %w", err)}
	}
	return Result{Outcome: OutcomeProduced, Payload: out, Data: string(data)}
}

func decodeObject(payload []byte) (map[string]any, error) {
	var decoded any
	if err := payloadAPI.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return fields, nil
}

// asDouble converts JSON numbers to float64; every other value is 0.
// Numeric strings are not parsed.
func asDouble(value any) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("number %s: %v: %w", v.String(), err, ErrNonFiniteSum)
		}
		return f, nil
	case float64:
		return v, nil
	default:
		return 0, nil
	}
}
