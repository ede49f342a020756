package handler

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// fields は Struct リクエストの値を型付きで取り出します。
type fields map[string]*structpb.Value

func fieldsOf(req *structpb.Struct) fields {
	if req == nil {
		return fields{}
	}
	return fields(req.GetFields())
}

func (f fields) has(name string) bool {
	v, ok := f[name]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (f fields) str(name string) string {
	return strings.TrimSpace(f[name].GetStringValue())
}

func (f fields) optStr(name string) *string {
	if !f.has(name) {
		return nil
	}
	v := f[name].GetStringValue()
	return &v
}

func (f fields) integer(name string) (int, error) {
	v, ok := f[name]
	if !ok {
		return 0, invalidArgument("%s is required", name)
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, invalidArgument("%s must be an integer", name)
	}
	return int(n.NumberValue), nil
}

func (f fields) date(name string) (roster.Date, error) {
	d, err := roster.ParseDate(f.str(name))
	if err != nil {
		return roster.Date{}, invalidArgument("%s: %v", name, err)
	}
	return d, nil
}

func (f fields) strings(name string) []string {
	var out []string
	for _, v := range f[name].GetListValue().GetValues() {
		if s := strings.TrimSpace(v.GetStringValue()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (f fields) object(name string) fields {
	return fieldsOf(f[name].GetStructValue())
}

func (f fields) leaveEntry() (roster.LeaveEntry, error) {
	start, err := f.date("startDate")
	if err != nil {
		return roster.LeaveEntry{}, err
	}
	end, err := f.date("endDate")
	if err != nil {
		return roster.LeaveEntry{}, err
	}
	return roster.LeaveEntry{
		StartDate: start,
		EndDate:   end,
		Type:      roster.LeaveType(strings.ToLower(f.str("type"))),
		Notes:     f["notes"].GetStringValue(),
	}, nil
}

func invalidArgument(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}

// toStruct は JSON タグに従って v を Struct に変換します。
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
