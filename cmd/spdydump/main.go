// Command spdydump listens for SPDY connections and logs every frame it
// decodes. It is a wire-level inspection tool: one decoder per
// connection, no session or stream state.
package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os"

	"golang.org/x/net/netutil"

	"example.com/spdywire/internal/config"
	"example.com/spdywire/internal/logger"
	"example.com/spdywire/internal/spdy"
)

var configFilePath string

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the configuration file (TOML or JSON); defaults apply when omitted")
	flag.Parse()

	cfg := config.Default()
	if configFilePath != "" {
		var err error
		cfg, err = config.Load(configFilePath)
		if err != nil {
			log.Fatalf("Failed to load configuration from %s: %v", configFilePath, err)
		}
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ln, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		appLogger.Errorf("Failed to listen on %s: %v", cfg.Server.ListenAddress, err)
		os.Exit(1)
	}
	ln = netutil.LimitListener(ln, *cfg.Server.MaxConnections)
	appLogger.Infof("listening on %s (%s, max %d connections)",
		ln.Addr(), spdy.Version(*cfg.Decoder.Version), *cfg.Server.MaxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			appLogger.Errorf("accept: %v", err)
			return
		}
		go serveConn(conn, cfg, appLogger)
	}
}

// serveConn owns one connection and the decoder pinned to it. All
// decoder calls happen on this goroutine.
func serveConn(conn net.Conn, cfg *config.Config, appLogger *logger.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	dec, err := spdy.NewDecoder(
		spdy.Version(*cfg.Decoder.Version),
		*cfg.Decoder.MaxChunkSize,
		*cfg.Decoder.MaxHeaderSize,
	)
	if err != nil {
		appLogger.Errorf("decoder init for %s: %v", remote, err)
		return
	}
	defer dec.Close()

	buf := spdy.NewBuffer(nil)
	var received uint64
	chunk := make([]byte, 4096)

	for {
		n, readErr := conn.Read(chunk)
		if n > 0 {
			received += uint64(n)
			buf.Write(chunk[:n])
			if !drain(dec, buf, remote, appLogger) {
				appLogger.SessionClosed(remote, received)
				return
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				appLogger.Errorf("read from %s: %v", remote, readErr)
			}
			if drain(dec, buf, remote, appLogger) {
				if f, err := dec.DecodeLast(buf); err != nil {
					appLogger.DecodeError(remote, err)
				} else if f != nil {
					appLogger.FrameEvent(remote, f)
				}
			}
			appLogger.SessionClosed(remote, received)
			return
		}
	}
}

// drain drives the decoder to its progress fixed point: it stops once a
// call neither produced a frame nor consumed input. Returns false once
// the decoder has reported its error event.
func drain(dec *spdy.Decoder, buf *spdy.Buffer, remote string, appLogger *logger.Logger) bool {
	for {
		before := buf.ReadableBytes()

		f, err := dec.Decode(buf)
		if err != nil {
			appLogger.DecodeError(remote, err)
			return false
		}
		if f != nil {
			appLogger.FrameEvent(remote, f)
			continue
		}
		if buf.ReadableBytes() == before {
			return true
		}
	}
}
