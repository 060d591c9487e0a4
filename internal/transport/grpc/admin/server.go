// Package admingrpc contains the admin gRPC client and server adapters for
// inspecting and operating a node's DTM0 log.
package admingrpc

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/i-melnichenko/dtm0-lab/internal/be"
	"github.com/i-melnichenko/dtm0-lab/internal/dtm0log"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
	"github.com/i-melnichenko/dtm0-lab/internal/service"
)

// Journal is the subset of *service.Journal required by the admin server.
// *service.Journal satisfies this interface.
type Journal interface {
	Info(ctx context.Context) (service.Info, error)
	Find(ctx context.Context, id dtx.ID) (dtm0log.Record, bool, error)
	List(ctx context.Context) ([]dtm0log.Record, error)
	RedoPlan(ctx context.Context, fid dtx.FID) ([]dtm0log.Record, error)
	Record(ctx context.Context, op dtm0log.Op, d dtx.Descriptor, payload []byte) error
	Prune(ctx context.Context, id dtx.ID) (int, error)
	PruneStable(ctx context.Context) (dtx.ID, int, error)
}

var errInvalidArgument = errors.New("admin: invalid argument")

// Server implements AdminServiceServer by delegating to a Journal.
type Server struct {
	UnimplementedAdminServiceServer
	journal Journal
}

// NewServer creates an admin gRPC server adapter.
func NewServer(journal Journal) *Server {
	return &Server{journal: journal}
}

// GetLogInfo returns log and segment statistics of the node.
func (s *Server) GetLogInfo(ctx context.Context, _ *GetLogInfoRequest) (*GetLogInfoResponse, error) {
	info, err := s.journal.Info(ctx)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return &GetLogInfoResponse{Info: logInfoToWire(info)}, nil
}

// FindRecord looks a transaction up by ID.
func (s *Server) FindRecord(ctx context.Context, req *FindRecordRequest) (*FindRecordResponse, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	r, found, err := s.journal.Find(ctx, id)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	if !found {
		return &FindRecordResponse{}, nil
	}
	wire := recordToWire(r)
	return &FindRecordResponse{Found: true, Record: &wire}, nil
}

// ListRecords returns the whole log in order.
func (s *Server) ListRecords(ctx context.Context, _ *ListRecordsRequest) (*ListRecordsResponse, error) {
	recs, err := s.journal.List(ctx)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return &ListRecordsResponse{Records: recordsToWire(recs)}, nil
}

// GetRedoPlan returns what a recovering participant must have redone.
func (s *Server) GetRedoPlan(ctx context.Context, req *GetRedoPlanRequest) (*GetRedoPlanResponse, error) {
	fid, err := dtx.ParseFID(req.Participant)
	if err != nil {
		return nil, toGRPCStatus(fmt.Errorf("%w: %v", errInvalidArgument, err))
	}
	recs, err := s.journal.RedoPlan(ctx, fid)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return &GetRedoPlanResponse{Records: recordsToWire(recs)}, nil
}

// UpdateRecord logs a descriptor as seen by the given operation.
func (s *Server) UpdateRecord(ctx context.Context, req *UpdateRecordRequest) (*UpdateRecordResponse, error) {
	op, err := dtm0log.ParseOp(req.Op)
	if err != nil {
		return nil, toGRPCStatus(fmt.Errorf("%w: %v", errInvalidArgument, err))
	}
	d, err := descriptorFromWire(req.Record)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	if err := s.journal.Record(ctx, op, d, req.Record.Payload); err != nil {
		return nil, toGRPCStatus(err)
	}
	return &UpdateRecordResponse{}, nil
}

// PruneRecords prunes through the given ID or the leading stable run.
func (s *Server) PruneRecords(ctx context.Context, req *PruneRecordsRequest) (*PruneRecordsResponse, error) {
	if req.Stable {
		last, n, err := s.journal.PruneStable(ctx)
		if err != nil {
			return nil, toGRPCStatus(err)
		}
		resp := &PruneRecordsResponse{Removed: int64(n)}
		if n > 0 {
			resp.Through = last.String()
		}
		return resp, nil
	}

	id, err := parseID(req.ID)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	n, err := s.journal.Prune(ctx, id)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return &PruneRecordsResponse{Removed: int64(n), Through: id.String()}, nil
}

func parseID(s string) (dtx.ID, error) {
	id, err := dtx.ParseID(s)
	if err != nil {
		return dtx.ID{}, fmt.Errorf("%w: %v", errInvalidArgument, err)
	}
	return id, nil
}

func toGRPCStatus(err error) error {
	switch {
	case errors.Is(err, dtm0log.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, dtm0log.ErrUnstable), errors.Is(err, dtm0log.ErrGroupMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, be.ErrNoSpace), errors.Is(err, be.ErrTxTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, errInvalidArgument),
		errors.Is(err, dtm0log.ErrInvalidDescriptor),
		errors.Is(err, service.ErrInvalidOp):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logInfoToWire(info service.Info) LogInfo {
	out := LogInfo{
		NodeID:          info.NodeID,
		Backend:         info.Backend,
		Records:         int64(info.Records),
		StableRecords:   int64(info.StableRecords),
		SegmentUsed:     info.SegmentUsed,
		SegmentCapacity: info.SegmentCapacity,
		SegmentObjects:  int64(info.SegmentObjects),
		UptimeMillis:    info.Uptime.Milliseconds(),
	}
	if info.StableRecords > 0 {
		out.StableLast = info.StableLast.String()
	}
	return out
}

// Uptime returns the node uptime carried by info.
func (info LogInfo) Uptime() time.Duration {
	return time.Duration(info.UptimeMillis) * time.Millisecond
}

func recordToWire(r dtm0log.Record) Record {
	ps := make([]Participant, len(r.Descriptor.Participants))
	for i, p := range r.Descriptor.Participants {
		ps[i] = Participant{FID: p.FID.String(), State: p.State.String()}
	}
	return Record{
		ID:           r.ID().String(),
		Participants: ps,
		Payload:      r.Payload,
		Placeholder:  r.IsPlaceholder(),
		Stable:       r.IsStable(),
	}
}

func recordsToWire(recs []dtm0log.Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = recordToWire(r)
	}
	return out
}

func descriptorFromWire(r Record) (dtx.Descriptor, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return dtx.Descriptor{}, err
	}
	d := dtx.Descriptor{ID: id, Participants: make([]dtx.Participant, len(r.Participants))}
	for i, p := range r.Participants {
		fid, err := dtx.ParseFID(p.FID)
		if err != nil {
			return dtx.Descriptor{}, fmt.Errorf("%w: participant %d: %v", errInvalidArgument, i, err)
		}
		st, err := dtx.ParseState(p.State)
		if err != nil {
			return dtx.Descriptor{}, fmt.Errorf("%w: participant %d: %v", errInvalidArgument, i, err)
		}
		d.Participants[i] = dtx.Participant{FID: fid, State: st}
	}
	return d, nil
}
