package admingrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when the prune target is not in the log.
	ErrNotFound = errors.New("admin: not found")
	// ErrRejected is returned when the log refuses an operation, such as
	// pruning past an unstable record or changing a participant group.
	ErrRejected = errors.New("admin: rejected")
	// ErrNoSpace is returned when the node's segment cannot hold the change.
	ErrNoSpace = errors.New("admin: no space")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("admin: invalid argument")
)

// Client is a thin wrapper around the admin service client.
type Client struct {
	conn   *grpc.ClientConn
	client *adminServiceClient
}

// Dial connects to an admin gRPC server at target.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("admin client: dial %s: %w", target, err)
	}
	return &Client{
		conn:   conn,
		client: &adminServiceClient{cc: conn},
	}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Info fetches log statistics from the node.
func (c *Client) Info(ctx context.Context) (LogInfo, error) {
	resp, err := c.client.GetLogInfo(ctx, &GetLogInfoRequest{})
	if err != nil {
		return LogInfo{}, fromGRPCStatus(err)
	}
	return resp.Info, nil
}

// Find looks a transaction up by its "<ts>@<fid>" ID.
func (c *Client) Find(ctx context.Context, id string) (Record, bool, error) {
	resp, err := c.client.FindRecord(ctx, &FindRecordRequest{ID: id})
	if err != nil {
		return Record{}, false, fromGRPCStatus(err)
	}
	if !resp.Found || resp.Record == nil {
		return Record{}, false, nil
	}
	return *resp.Record, true, nil
}

// List returns every record in log order.
func (c *Client) List(ctx context.Context) ([]Record, error) {
	resp, err := c.client.ListRecords(ctx, &ListRecordsRequest{})
	if err != nil {
		return nil, fromGRPCStatus(err)
	}
	return resp.Records, nil
}

// RedoPlan returns the records participant must have redone.
func (c *Client) RedoPlan(ctx context.Context, participant string) ([]Record, error) {
	resp, err := c.client.GetRedoPlan(ctx, &GetRedoPlanRequest{Participant: participant})
	if err != nil {
		return nil, fromGRPCStatus(err)
	}
	return resp.Records, nil
}

// Update logs r as seen by op (sent, executed, persistent or redo).
func (c *Client) Update(ctx context.Context, op string, r Record) error {
	if _, err := c.client.UpdateRecord(ctx, &UpdateRecordRequest{Op: op, Record: r}); err != nil {
		return fromGRPCStatus(err)
	}
	return nil
}

// Prune removes every record through id.
func (c *Client) Prune(ctx context.Context, id string) (int64, error) {
	resp, err := c.client.PruneRecords(ctx, &PruneRecordsRequest{ID: id})
	if err != nil {
		return 0, fromGRPCStatus(err)
	}
	return resp.Removed, nil
}

// PruneStable removes the leading run of stable records.
func (c *Client) PruneStable(ctx context.Context) (removed int64, through string, err error) {
	resp, err := c.client.PruneRecords(ctx, &PruneRecordsRequest{Stable: true})
	if err != nil {
		return 0, "", fromGRPCStatus(err)
	}
	return resp.Removed, resp.Through, nil
}

func fromGRPCStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrNoSpace, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	default:
		return err
	}
}
