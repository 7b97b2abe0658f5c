package main // import "github.com/docsight/go-highlightserver"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/docsight/go-highlightserver/langserver"
	"github.com/docsight/go-highlightserver/tracer"

	_ "net/http/pprof"
)

var (
	mode         = flag.String("mode", "stdio", "communication mode (stdio|tcp|websocket)")
	addr         = flag.String("addr", ":4389", "server listen address (tcp or websocket)")
	trace        = flag.Bool("trace", false, "print all requests and responses")
	logfile      = flag.String("logfile", "", "also log to this file (in addition to stderr)")
	printVersion = flag.Bool("version", false, "print version and exit")
	pprofAddr    = flag.String("pprof", "", "start a pprof http server (https://golang.org/pkg/net/http/pprof/)")
	freeosmemory = flag.Bool("freeosmemory", true, "aggressively free memory back to the OS")
	configPath   = flag.String("config", "", "path to a TOML config file")

	// Defaults, can be overridden by the config file.
	maxparallelism = flag.Int("maxparallelism", 0, "use at max N parallel goroutines to fulfill requests")
	singledoc      = flag.Bool("singledoc", false, "restrict highlight requests to the document they were issued against")
)

const version = "v1-dev"

func main() {
	flag.Parse()
	log.SetFlags(0)

	// Start pprof server, if desired.
	if *pprofAddr != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	if *freeosmemory {
		go freeOSMemory()
	}

	tracer.Init()

	cfg := langserver.NewDefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = langserver.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *maxparallelism > 0 {
		cfg.MaxParallelism = *maxparallelism
	}
	if *singledoc {
		cfg.SingleDocumentScope = true
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg langserver.Config) error {
	if *printVersion {
		fmt.Println(version)
		return nil
	}

	var logW io.Writer
	if *logfile == "" {
		logW = os.Stderr
	} else {
		f, err := os.Create(*logfile)
		if err != nil {
			return err
		}
		defer f.Close()
		logW = io.MultiWriter(os.Stderr, f)
	}
	log.SetOutput(logW)

	var connOpt []jsonrpc2.ConnOpt
	if *trace {
		connOpt = append(connOpt, jsonrpc2.LogMessages(log.New(logW, "", 0)))
	}

	switch *mode {
	case "tcp":
		lis, err := net.Listen("tcp", *addr)
		if err != nil {
			return err
		}
		defer lis.Close()

		log.Println("highlightserver: listening for TCP connections on", *addr)

		connectionCount := 0

		for {
			conn, err := lis.Accept()
			if err != nil {
				return err
			}
			connectionCount++
			connectionID := connectionCount
			log.Printf("highlightserver: received incoming connection #%d\n", connectionID)
			handler := langserver.NewHandler(cfg)
			jsonrpc2Connection := jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{}), handler, connOpt...)
			go func() {
				<-jsonrpc2Connection.DisconnectNotify()
				log.Printf("highlightserver: disconnected connection #%d\n", connectionID)
			}()
		}

	case "websocket":
		mux := http.NewServeMux()

		connectionCount := 0

		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
			connection, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Println("error upgrading HTTP to WebSocket:", err)
				return
			}
			defer connection.Close()
			connectionCount++
			connectionID := connectionCount
			log.Printf("highlightserver: received incoming WebSocket connection #%d\n", connectionID)

			// Each connection holds per-session state (open documents), so
			// every connection gets its own handler.
			handler := langserver.NewHandler(cfg)
			<-jsonrpc2.NewConn(context.Background(), NewObjectStream(connection), handler, connOpt...).DisconnectNotify()
			log.Printf("highlightserver: disconnected WebSocket connection #%d\n", connectionID)
		})

		log.Println("highlightserver: listening for WebSocket connections on", *addr)
		return http.ListenAndServe(*addr, mux)

	case "stdio":
		log.Println("highlightserver: reading on stdin, writing on stdout")
		handler := langserver.NewHandler(cfg)
		<-jsonrpc2.NewConn(context.Background(), jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{}), handler, connOpt...).DisconnectNotify()
		log.Println("connection closed")
		return nil

	default:
		return fmt.Errorf("invalid mode %q", *mode)
	}
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

// freeOSMemory should be called in a goroutine. It invokes
// runtime/debug.FreeOSMemory() more aggressively than the runtime default of
// 5 minutes after GC, because type-checking a workspace performs many
// short-burst heap allocations that editors expect returned to the OS.
//
// See https://github.com/golang/go/issues/14735#issuecomment-194470114
func freeOSMemory() {
	for {
		time.Sleep(1 * time.Second)
		debug.FreeOSMemory()
	}
}
