package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName は roster サービスの完全修飾名です。
const ServiceName = "roster.v1.RosterService"

// RosterServiceServer は roster サービスのサーバー側インターフェースです。
// リクエストとレスポンスはどちらも google.protobuf.Struct で表現します。
type RosterServiceServer interface {
	Assign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reorder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Retract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RecordAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelLastAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RecordLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BeginMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProposeAssign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProposeReorder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CommitMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AbsenceReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	LeaveBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	EffectiveLeaveDays(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExportSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ImportSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(RosterServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, fn unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(RosterServiceServer)
			if interceptor == nil {
				return fn(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// RosterServiceDesc は手書きの grpc.ServiceDesc です。
var RosterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RosterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("Assign", RosterServiceServer.Assign),
		methodDesc("Reorder", RosterServiceServer.Reorder),
		methodDesc("Retract", RosterServiceServer.Retract),
		methodDesc("SetStatus", RosterServiceServer.SetStatus),
		methodDesc("RecordAbsence", RosterServiceServer.RecordAbsence),
		methodDesc("CancelAbsence", RosterServiceServer.CancelAbsence),
		methodDesc("CancelLastAbsence", RosterServiceServer.CancelLastAbsence),
		methodDesc("DeleteAbsence", RosterServiceServer.DeleteAbsence),
		methodDesc("UpdateAbsence", RosterServiceServer.UpdateAbsence),
		methodDesc("RecordLeave", RosterServiceServer.RecordLeave),
		methodDesc("DeleteLeave", RosterServiceServer.DeleteLeave),
		methodDesc("UpdateLeave", RosterServiceServer.UpdateLeave),
		methodDesc("BeginMove", RosterServiceServer.BeginMove),
		methodDesc("ProposeAssign", RosterServiceServer.ProposeAssign),
		methodDesc("ProposeReorder", RosterServiceServer.ProposeReorder),
		methodDesc("CommitMove", RosterServiceServer.CommitMove),
		methodDesc("CancelMove", RosterServiceServer.CancelMove),
		methodDesc("GetSnapshot", RosterServiceServer.GetSnapshot),
		methodDesc("ListPool", RosterServiceServer.ListPool),
		methodDesc("AbsenceReport", RosterServiceServer.AbsenceReport),
		methodDesc("LeaveBalance", RosterServiceServer.LeaveBalance),
		methodDesc("EffectiveLeaveDays", RosterServiceServer.EffectiveLeaveDays),
		methodDesc("ExportSnapshot", RosterServiceServer.ExportSnapshot),
		methodDesc("ImportSnapshot", RosterServiceServer.ImportSnapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roster/v1/roster.proto",
}

// RegisterRosterServiceServer は srv を s に登録します。
func RegisterRosterServiceServer(s grpc.ServiceRegistrar, srv RosterServiceServer) {
	s.RegisterService(&RosterServiceDesc, srv)
}

// RosterClient は roster サービスのクライアントです。
type RosterClient struct {
	cc grpc.ClientConnInterface
}

// NewRosterClient は RosterClient を生成します。
func NewRosterClient(cc grpc.ClientConnInterface) *RosterClient {
	return &RosterClient{cc: cc}
}

// Call は method を呼び出します。
func (c *RosterClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
