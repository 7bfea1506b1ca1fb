package server

import (
	"fmt"
	"math"
	"strconv"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses are google.protobuf.Struct messages. Memory words
// travel as decimal strings, as protobuf JSON does for int64, so values
// beyond 2^53 survive clients that decode numbers as doubles. Requests may
// send words as either strings or integral numbers.

const maxSafeInteger = 1<<53 - 1

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// wordValue converts a request value to a memory word.
func wordValue(name string, v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, invalidArgument("%s: %q is not an integer", name, k.StringValue)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
			return 0, invalidArgument("%s: %v is not an exact integer; send it as a string", name, f)
		}
		return int64(f), nil
	default:
		return 0, invalidArgument("%s: expected integer", name)
	}
}

// field returns the named field, or nil when absent or null.
func field(msg *structpb.Struct, name string) *structpb.Value {
	v, ok := msg.GetFields()[name]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	return v
}

func getInt(msg *structpb.Struct, name string, def int64) (int64, error) {
	v := field(msg, name)
	if v == nil {
		return def, nil
	}
	return wordValue(name, v)
}

func getInts(msg *structpb.Struct, name string) ([]int64, error) {
	v := field(msg, name)
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalidArgument("%s: expected list", name)
	}
	words := make([]int64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		w, err := wordValue(fmt.Sprintf("%s[%d]", name, i), item)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

func getString(msg *structpb.Struct, name string) string {
	return field(msg, name).GetStringValue()
}

func getBool(msg *structpb.Struct, name string) bool {
	return field(msg, name).GetBoolValue()
}

// patch is a cell overwrite applied before a run.
type patch struct {
	address int
	value   int64
}

func getPatches(msg *structpb.Struct) ([]patch, error) {
	v := field(msg, "patches")
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalidArgument("patches: expected list")
	}
	patches := make([]patch, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		p := item.GetStructValue()
		if p == nil {
			return nil, invalidArgument("patches[%d]: expected object", i)
		}
		addr, err := getInt(p, "address", -1)
		if err != nil {
			return nil, err
		}
		if addr < 0 || addr > math.MaxInt32 {
			return nil, invalidArgument("patches[%d]: address must be between 0 and %d", i, math.MaxInt32)
		}
		val, err := getInt(p, "value", 0)
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch{address: int(addr), value: val})
	}
	return patches, nil
}

func wordsValue(words []int64) *structpb.Value {
	values := make([]*structpb.Value, len(words))
	for i, w := range words {
		values[i] = wordString(w)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func wordString(w int64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(w, 10))
}

func number(n int64) *structpb.Value {
	return structpb.NewNumberValue(float64(n))
}

func reply(fields map[string]*structpb.Value) *connect.Response[structpb.Struct] {
	return connect.NewResponse(&structpb.Struct{Fields: fields})
}
