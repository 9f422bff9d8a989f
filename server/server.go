// Package server runs the TCP front end: one goroutine per connection,
// the idiomatic Go replacement for an explicit worker-thread pool.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/Priyanshu23/flashkv/proto"
	"github.com/Priyanshu23/flashkv/store"
)

// Server accepts connections on a listener and dispatches each parsed
// request to a store.
type Server struct {
	addr  string
	store *store.Store
	log   *zap.SugaredLogger
}

// New builds a Server bound to addr.
func New(addr string, st *store.Store, log *zap.SugaredLogger) *Server {
	return &Server{addr: addr, store: st, log: log}
}

// ListenAndServe listens on s.addr and serves connections until the
// listener is closed or accept fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.log.Infow("listening", "addr", s.addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		req, err := proto.ReadRequest(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			resp := proto.Response{Kind: proto.RespClientError, Message: err.Error()}
			if werr := resp.WriteTo(w); werr != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			continue
		}

		resp, err := s.store.Apply(req)
		if err != nil {
			s.log.Errorw("request failed", "error", err)
			resp = proto.Response{Kind: proto.RespServerError, Message: err.Error()}
		}

		if req.NoReply {
			continue
		}
		if err := resp.WriteTo(w); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
