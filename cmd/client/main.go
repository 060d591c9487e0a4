// Package main implements the CLI client for the DTM0 log admin service.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	admingrpc "github.com/i-melnichenko/dtm0-lab/internal/transport/grpc/admin"
)

const usage = `Usage:
  client [--addr host:port] info
  client [--addr host:port] find <ts@fid>
  client [--addr host:port] list
  client [--addr host:port] redo <participant-fid>
  client [--addr host:port] update [--op sent|executed|persistent|redo] [--payload s] <ts@fid> <fid=state>...
  client [--addr host:port] update-batch [--in <file|->]
  client [--addr host:port] prune <ts@fid>
  client [--addr host:port] prune --stable
  client [--addr host:port[,host:port,...]] watch

Commands:
 - info          prints log and segment statistics
 - find          prints one record
 - list          prints every record in log order
 - redo          prints the records a participant must have redone
 - update        logs one transaction state change
 - update-batch  logs many changes with one client (TSV: op<TAB>id<TAB>fid=state,...<TAB>payload)
 - prune         removes records through an ID, or the leading stable run
 - watch         polls every address and renders a live table

Flags:
  --addr     Comma-separated admin gRPC addresses (watch uses all, others the first)
  --timeout  Request timeout (default 5s)
`

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8080", "comma-separated admin gRPC addresses")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("subcommand required: info | find | list | redo | update | update-batch | prune | watch")
	}

	addrs := splitAddrs(*addr)
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses provided")
	}
	if args[0] == "watch" {
		if len(args) != 1 {
			return fmt.Errorf("usage: watch")
		}
		return cmdWatch(addrs, *timeout)
	}

	client, err := admingrpc.Dial(addrs[0], grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "info":
		if len(args) != 1 {
			return fmt.Errorf("usage: info")
		}
		return cmdInfo(ctx, client)

	case "find":
		if len(args) != 2 {
			return fmt.Errorf("usage: find <ts@fid>")
		}
		return cmdFind(ctx, client, args[1])

	case "list":
		if len(args) != 1 {
			return fmt.Errorf("usage: list")
		}
		recs, err := client.List(ctx)
		if err != nil {
			return err
		}
		printRecords(recs)
		return nil

	case "redo":
		if len(args) != 2 {
			return fmt.Errorf("usage: redo <participant-fid>")
		}
		recs, err := client.RedoPlan(ctx, args[1])
		if err != nil {
			return err
		}
		printRecords(recs)
		return nil

	case "update":
		fs := flag.NewFlagSet("update", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		op := fs.String("op", "executed", "sent | executed | persistent | redo")
		payload := fs.String("payload", "", "request payload, empty for a placeholder")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() < 2 {
			return fmt.Errorf("usage: update [--op op] [--payload s] <ts@fid> <fid=state>...")
		}
		rec, err := parseRecord(fs.Arg(0), fs.Args()[1:], *payload)
		if err != nil {
			return err
		}
		if err := client.Update(ctx, *op, rec); err != nil {
			return err
		}
		fmt.Printf("ok %s\n", rec.ID)
		return nil

	case "update-batch":
		fs := flag.NewFlagSet("update-batch", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		inPath := fs.String("in", "-", "TSV input path (op<TAB>id<TAB>fid=state,...<TAB>payload), use - for stdin")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 0 {
			return fmt.Errorf("usage: update-batch [--in <file|->]")
		}
		return cmdUpdateBatch(client, *timeout, *inPath)

	case "prune":
		fs := flag.NewFlagSet("prune", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		stable := fs.Bool("stable", false, "prune the leading run of stable records")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("usage: prune <ts@fid> | prune --stable")
		}
		return cmdPrune(ctx, client, *stable, fs.Args())

	default:
		flag.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func cmdInfo(ctx context.Context, c *admingrpc.Client) error {
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	stableLast := info.StableLast
	if stableLast == "" {
		stableLast = "-"
	}
	capacity := "unbounded"
	if info.SegmentCapacity > 0 {
		capacity = formatBytes(info.SegmentCapacity)
	}
	fmt.Printf("node:      %s (%s)\n", info.NodeID, info.Backend)
	fmt.Printf("records:   %d (%d stable through %s)\n", info.Records, info.StableRecords, stableLast)
	fmt.Printf("segment:   %s used of %s, %d objects\n", formatBytes(info.SegmentUsed), capacity, info.SegmentObjects)
	fmt.Printf("uptime:    %s\n", formatUptime(info.Uptime()))
	return nil
}

func cmdFind(ctx context.Context, c *admingrpc.Client, id string) error {
	rec, found, err := c.Find(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("(not found) %s\n", id)
		return nil
	}
	printRecords([]admingrpc.Record{rec})
	return nil
}

func cmdPrune(ctx context.Context, c *admingrpc.Client, stable bool, args []string) error {
	if stable {
		if len(args) != 0 {
			return fmt.Errorf("usage: prune --stable")
		}
		n, through, err := c.PruneStable(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("ok (nothing stable to prune)")
			return nil
		}
		fmt.Printf("ok (%d removed through %s)\n", n, through)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: prune <ts@fid>")
	}
	n, err := c.Prune(ctx, args[0])
	if errors.Is(err, admingrpc.ErrRejected) {
		return fmt.Errorf("prune refused, an earlier record is not stable: %w", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("ok (%d removed)\n", n)
	return nil
}

func cmdUpdateBatch(c *admingrpc.Client, timeout time.Duration, inPath string) error {
	var (
		r   io.Reader = os.Stdin
		f   *os.File
		err error
	)
	if inPath != "-" {
		// #nosec G304 -- CLI intentionally reads a user-provided local input file.
		f, err = os.Open(inPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	scanner := bufio.NewScanner(r)
	seq := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		seq++
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			fmt.Printf("err\t%d\t0\t\tinvalid_tsv_line\n", seq)
			continue
		}
		payload := ""
		if len(fields) > 3 {
			payload = fields[3]
		}
		rec, err := parseRecord(fields[1], strings.Split(fields[2], ","), payload)
		if err != nil {
			fmt.Printf("err\t%d\t0\t%s\t%s\n", seq, fields[1], oneLineErr(err))
			continue
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		updErr := c.Update(ctx, fields[0], rec)
		cancel()
		us := time.Since(start).Microseconds()

		switch {
		case updErr == nil:
			fmt.Printf("ok\t%d\t%d\t%s\n", seq, us, rec.ID)
		case errors.Is(updErr, context.DeadlineExceeded), status.Code(updErr) == codes.DeadlineExceeded:
			fmt.Printf("timeout\t%d\t%d\t%s\t%s\n", seq, us, rec.ID, oneLineErr(updErr))
		default:
			fmt.Printf("err\t%d\t%d\t%s\t%s\n", seq, us, rec.ID, oneLineErr(updErr))
		}
	}
	return scanner.Err()
}

// parseRecord builds a wire record from "<fid>=<state>" participant specs.
// Validation of the FIDs and states is left to the server.
func parseRecord(id string, specs []string, payload string) (admingrpc.Record, error) {
	rec := admingrpc.Record{ID: strings.TrimSpace(id)}
	for _, spec := range specs {
		fid, state, ok := strings.Cut(strings.TrimSpace(spec), "=")
		if !ok || fid == "" || state == "" {
			return admingrpc.Record{}, fmt.Errorf("invalid participant %q, want <fid>=<state>", spec)
		}
		rec.Participants = append(rec.Participants, admingrpc.Participant{FID: fid, State: state})
	}
	if payload != "" {
		rec.Payload = []byte(payload)
	}
	return rec, nil
}

func printRecords(recs []admingrpc.Record) {
	if len(recs) == 0 {
		fmt.Println("(empty)")
		return
	}
	for _, r := range recs {
		ps := make([]string, len(r.Participants))
		for i, p := range r.Participants {
			ps[i] = p.FID + "=" + p.State
		}
		flags := ""
		if r.Stable {
			flags += " stable"
		}
		if r.Placeholder {
			flags += " placeholder"
		}
		fmt.Printf("%s [%s]%s %dB\n", r.ID, strings.Join(ps, ","), flags, len(r.Payload))
	}
}

func oneLineErr(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

func splitAddrs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
