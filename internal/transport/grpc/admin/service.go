package admingrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "dtm0lab.admin.v1.AdminService"

const (
	methodGetLogInfo   = "/" + serviceName + "/GetLogInfo"
	methodFindRecord   = "/" + serviceName + "/FindRecord"
	methodListRecords  = "/" + serviceName + "/ListRecords"
	methodGetRedoPlan  = "/" + serviceName + "/GetRedoPlan"
	methodUpdateRecord = "/" + serviceName + "/UpdateRecord"
	methodPruneRecords = "/" + serviceName + "/PruneRecords"
)

// AdminServiceServer is the server API for the admin service.
type AdminServiceServer interface {
	GetLogInfo(context.Context, *GetLogInfoRequest) (*GetLogInfoResponse, error)
	FindRecord(context.Context, *FindRecordRequest) (*FindRecordResponse, error)
	ListRecords(context.Context, *ListRecordsRequest) (*ListRecordsResponse, error)
	GetRedoPlan(context.Context, *GetRedoPlanRequest) (*GetRedoPlanResponse, error)
	UpdateRecord(context.Context, *UpdateRecordRequest) (*UpdateRecordResponse, error)
	PruneRecords(context.Context, *PruneRecordsRequest) (*PruneRecordsResponse, error)
}

// UnimplementedAdminServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedAdminServiceServer struct{}

func (UnimplementedAdminServiceServer) GetLogInfo(context.Context, *GetLogInfoRequest) (*GetLogInfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLogInfo not implemented")
}
func (UnimplementedAdminServiceServer) FindRecord(context.Context, *FindRecordRequest) (*FindRecordResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FindRecord not implemented")
}
func (UnimplementedAdminServiceServer) ListRecords(context.Context, *ListRecordsRequest) (*ListRecordsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRecords not implemented")
}
func (UnimplementedAdminServiceServer) GetRedoPlan(context.Context, *GetRedoPlanRequest) (*GetRedoPlanResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRedoPlan not implemented")
}
func (UnimplementedAdminServiceServer) UpdateRecord(context.Context, *UpdateRecordRequest) (*UpdateRecordResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateRecord not implemented")
}
func (UnimplementedAdminServiceServer) PruneRecords(context.Context, *PruneRecordsRequest) (*PruneRecordsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PruneRecords not implemented")
}

// RegisterAdminServiceServer registers srv on s.
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(AdminServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetLogInfo",
			Handler:    unaryHandler(methodGetLogInfo, AdminServiceServer.GetLogInfo),
		},
		{
			MethodName: "FindRecord",
			Handler:    unaryHandler(methodFindRecord, AdminServiceServer.FindRecord),
		},
		{
			MethodName: "ListRecords",
			Handler:    unaryHandler(methodListRecords, AdminServiceServer.ListRecords),
		},
		{
			MethodName: "GetRedoPlan",
			Handler:    unaryHandler(methodGetRedoPlan, AdminServiceServer.GetRedoPlan),
		},
		{
			MethodName: "UpdateRecord",
			Handler:    unaryHandler(methodUpdateRecord, AdminServiceServer.UpdateRecord),
		},
		{
			MethodName: "PruneRecords",
			Handler:    unaryHandler(methodPruneRecords, AdminServiceServer.PruneRecords),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dtm0lab/admin/v1/admin.proto",
}

// adminServiceClient is the client API for the admin service.
type adminServiceClient struct {
	cc grpc.ClientConnInterface
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) GetLogInfo(ctx context.Context, in *GetLogInfoRequest, opts ...grpc.CallOption) (*GetLogInfoResponse, error) {
	return invoke[GetLogInfoResponse](ctx, c.cc, methodGetLogInfo, in, opts...)
}

func (c *adminServiceClient) FindRecord(ctx context.Context, in *FindRecordRequest, opts ...grpc.CallOption) (*FindRecordResponse, error) {
	return invoke[FindRecordResponse](ctx, c.cc, methodFindRecord, in, opts...)
}

func (c *adminServiceClient) ListRecords(ctx context.Context, in *ListRecordsRequest, opts ...grpc.CallOption) (*ListRecordsResponse, error) {
	return invoke[ListRecordsResponse](ctx, c.cc, methodListRecords, in, opts...)
}

func (c *adminServiceClient) GetRedoPlan(ctx context.Context, in *GetRedoPlanRequest, opts ...grpc.CallOption) (*GetRedoPlanResponse, error) {
	return invoke[GetRedoPlanResponse](ctx, c.cc, methodGetRedoPlan, in, opts...)
}

func (c *adminServiceClient) UpdateRecord(ctx context.Context, in *UpdateRecordRequest, opts ...grpc.CallOption) (*UpdateRecordResponse, error) {
	return invoke[UpdateRecordResponse](ctx, c.cc, methodUpdateRecord, in, opts...)
}

func (c *adminServiceClient) PruneRecords(ctx context.Context, in *PruneRecordsRequest, opts ...grpc.CallOption) (*PruneRecordsResponse, error) {
	return invoke[PruneRecordsResponse](ctx, c.cc, methodPruneRecords, in, opts...)
}
