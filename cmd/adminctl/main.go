package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"homeservices/internal/api"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const usage = `usage: adminctl [flags] <command> <id>

commands:
  booking <id>   show a booking
  payment <id>   show a payment
  refund <id>    refund a completed payment

flags:
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr    = flag.String("addr", "localhost:8081", "admin gRPC address")
		key     = flag.String("key", os.Getenv("ADMIN_API_KEY"), "API key")
		header  = flag.String("header", "x-api-key", "API key metadata header")
		useTLS  = flag.Bool("tls", false, "connect with TLS")
		timeout = flag.Duration("timeout", 10*time.Second, "request timeout")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected a command and an id")
	}
	id, err := strconv.ParseInt(flag.Arg(1), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", flag.Arg(1))
	}

	creds := insecure.NewCredentials()
	if *useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return fmt.Errorf("connect %s: %w", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if *key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, *header, *key)
	}

	client := api.NewAdminClient(conn)
	var out *structpb.Struct
	switch flag.Arg(0) {
	case "booking":
		out, err = client.GetBooking(ctx, id)
	case "payment":
		out, err = client.GetPayment(ctx, id)
	case "refund":
		out, err = client.RefundPayment(ctx, id)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		return err
	}

	raw, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
