// Package store binds the wire protocol to the engine façade: it
// attaches the flags and an absolute expiry time (creation time plus
// ttl, 0 for never) to stored payloads and treats an expired payload
// as absent, following the reference store's StorePayload/is_expire
// behaviour.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Priyanshu23/flashkv/engine"
	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/proto"
)

const payloadHeaderLen = 12 // 4-byte flags + 8-byte expiry (unix seconds, 0 = never)

// Store wraps an engine.Engine, encoding flags/expiry alongside every
// stored value.
type Store struct {
	eng *engine.Engine
}

// New wraps eng.
func New(eng *engine.Engine) *Store {
	return &Store{eng: eng}
}

func encodePayload(flags uint32, expiresAt int64, data []byte) []byte {
	buf := make([]byte, payloadHeaderLen+len(data))
	binary.BigEndian.PutUint32(buf[0:4], flags)
	binary.BigEndian.PutUint64(buf[4:12], uint64(expiresAt))
	copy(buf[payloadHeaderLen:], data)
	return buf
}

func decodePayload(raw []byte) (flags uint32, expiresAt int64, data []byte) {
	flags = binary.BigEndian.Uint32(raw[0:4])
	expiresAt = int64(binary.BigEndian.Uint64(raw[4:12]))
	return flags, expiresAt, raw[payloadHeaderLen:]
}

func expired(expiresAt int64) bool {
	return expiresAt != 0 && time.Now().Unix() >= expiresAt
}

func expiryFor(ttl uint32) int64 {
	if ttl == 0 {
		return 0
	}
	return time.Now().Unix() + int64(ttl)
}

// getLive looks up key, returning ok=false if absent or expired.
func (s *Store) getLive(key []byte) (flags uint32, data []byte, ok bool, err error) {
	raw, err := s.eng.Get(key)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	fl, expiresAt, d := decodePayload(raw)
	if expired(expiresAt) {
		return 0, nil, false, nil
	}
	return fl, d, true, nil
}

// Apply executes req against the engine and returns the response to
// send back. NoReply suppression is the caller's (server's)
// responsibility.
func (s *Store) Apply(req proto.Request) (proto.Response, error) {
	switch req.Kind {
	case proto.KindGetter:
		return s.applyGetter(req)
	case proto.KindSetter:
		return s.applySetter(req)
	case proto.KindDeleter:
		return s.applyDeleter(req)
	case proto.KindInfo:
		return s.applyInfo()
	case proto.KindMajorCompaction:
		return s.applyMajorCompaction()
	default:
		return proto.Response{Kind: proto.RespError}, nil
	}
}

func (s *Store) applyGetter(req proto.Request) (proto.Response, error) {
	items := make([]proto.GetItem, 0, len(req.Keys))
	for _, key := range req.Keys {
		flags, data, ok, err := s.getLive(key)
		if err != nil {
			return proto.Response{}, err
		}
		if !ok {
			continue
		}
		items = append(items, proto.GetItem{Key: key, Data: data, Flags: flags, Bytes: len(data)})
	}
	kind := proto.RespGet
	if req.Getter == proto.Gets {
		kind = proto.RespGets
	}
	return proto.Response{Kind: kind, Items: items}, nil
}

func (s *Store) applySetter(req proto.Request) (proto.Response, error) {
	if len(req.Payload) != req.Bytes {
		return proto.Response{Kind: proto.RespClientError, Message: "bad data chunk"}, nil
	}

	switch req.Setter {
	case proto.Set:
		if err := s.put(req.Key, req.Flags, req.TTL, req.Payload); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Kind: proto.RespStored}, nil

	case proto.Add:
		_, _, ok, err := s.getLive(req.Key)
		if err != nil {
			return proto.Response{}, err
		}
		if ok {
			return proto.Response{Kind: proto.RespNotStored}, nil
		}
		if err := s.put(req.Key, req.Flags, req.TTL, req.Payload); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Kind: proto.RespStored}, nil

	case proto.Replace:
		_, _, ok, err := s.getLive(req.Key)
		if err != nil {
			return proto.Response{}, err
		}
		if !ok {
			return proto.Response{Kind: proto.RespNotStored}, nil
		}
		if err := s.put(req.Key, req.Flags, req.TTL, req.Payload); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Kind: proto.RespStored}, nil

	case proto.Append:
		_, existing, ok, err := s.getLive(req.Key)
		if err != nil {
			return proto.Response{}, err
		}
		if !ok {
			return proto.Response{Kind: proto.RespNotStored}, nil
		}
		merged := append(append([]byte(nil), existing...), req.Payload...)
		if err := s.put(req.Key, req.Flags, req.TTL, merged); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Kind: proto.RespStored}, nil

	case proto.Prepend:
		_, existing, ok, err := s.getLive(req.Key)
		if err != nil {
			return proto.Response{}, err
		}
		if !ok {
			return proto.Response{Kind: proto.RespNotStored}, nil
		}
		merged := append(append([]byte(nil), req.Payload...), existing...)
		if err := s.put(req.Key, req.Flags, req.TTL, merged); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Kind: proto.RespStored}, nil

	default:
		return proto.Response{Kind: proto.RespError}, nil
	}
}

func (s *Store) put(key []byte, flags uint32, ttl uint32, data []byte) error {
	return s.eng.Insert(key, encodePayload(flags, expiryFor(ttl), data))
}

func (s *Store) applyDeleter(req proto.Request) (proto.Response, error) {
	_, _, ok, err := s.getLive(req.Key)
	if err != nil {
		return proto.Response{}, err
	}
	if !ok {
		return proto.Response{Kind: proto.RespNotFound}, nil
	}
	if err := s.eng.Remove(req.Key); err != nil {
		return proto.Response{}, err
	}
	return proto.Response{Kind: proto.RespDeleted}, nil
}

func (s *Store) applyInfo() (proto.Response, error) {
	info := s.eng.Info()
	msg := fmt.Sprintf("queued_memtables=%d", info.QueueLen)
	for _, lvl := range info.Levels {
		msg += fmt.Sprintf("\nlevel%d_files=%d level%d_bytes=%d", lvl.Level, lvl.Files, lvl.Level, lvl.Bytes)
	}
	return proto.Response{Kind: proto.RespInfo, Message: msg}, nil
}

func (s *Store) applyMajorCompaction() (proto.Response, error) {
	if _, err := s.eng.MajorCompaction(); err != nil {
		return proto.Response{}, err
	}
	return proto.Response{Kind: proto.RespOk}, nil
}
