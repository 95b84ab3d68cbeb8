package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"uclab.dev/conncheck/checkrpc"
	"uclab.dev/conncheck/lesson"
)

func main() {
	fs := flag.NewFlagSet("conncheckd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7710", "listen address")
	listLessons := fs.Bool("list-lessons", false, "List built-in lesson definitions and exit")

	_ = fs.Parse(os.Args[1:])
	if *listLessons {
		for _, name := range lesson.Names() {
			_, _ = fmt.Fprintln(os.Stdout, name)
		}
		return
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	checkrpc.RegisterCheckerServer(s, &checkrpc.Server{})

	fmt.Fprintf(os.Stderr, "conncheckd listening on %s\n", lis.Addr().String())
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
