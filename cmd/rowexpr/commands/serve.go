package commands

import (
	"flag"
	"fmt"
	"net/http"

	"rowexpr/internal/liveserver"
)

// ServeCommand starts a websocket server exposing liveserver.Handler,
// the streaming counterpart to "rowexpr eval".
func ServeCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "address to listen on")
	path := fs.String("path", "/eval", "websocket endpoint path")
	fs.Parse(args)

	mux := http.NewServeMux()
	mux.Handle(*path, liveserver.Handler{})

	fmt.Printf("rowexpr serve: listening on %s%s\n", *addr, *path)
	return http.ListenAndServe(*addr, mux)
}
