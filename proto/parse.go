package proto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadRequest reads and parses one command from r. It is a plain
// byte-scanner over \r\n-terminated lines — the Go-idiomatic
// counterpart to a combinator parser, since the example pack carries
// no combinator-parsing library to translate one from.
func ReadRequest(r *bufio.Reader) (Request, error) {
	line, err := readLine(r)
	if err != nil {
		return Request{}, err
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "get", "gets":
		if len(fields) < 2 {
			return Request{}, fmt.Errorf("%s: missing key", fields[0])
		}
		keys := make([][]byte, len(fields)-1)
		for i, k := range fields[1:] {
			keys[i] = []byte(k)
		}
		getter := Get
		if fields[0] == "gets" {
			getter = Gets
		}
		return Request{Kind: KindGetter, Getter: getter, Keys: keys}, nil

	case "set", "add", "replace", "append", "prepend":
		return parseSetter(r, fields)

	case "delete":
		if len(fields) < 2 {
			return Request{}, fmt.Errorf("delete: missing key")
		}
		noReply := len(fields) >= 3 && fields[2] == "noreply"
		return Request{Kind: KindDeleter, Key: []byte(fields[1]), NoReply: noReply}, nil

	case "info":
		return Request{Kind: KindInfo}, nil

	case "major_compaction", "compact":
		return Request{Kind: KindMajorCompaction}, nil

	default:
		return Request{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseSetter(r *bufio.Reader, fields []string) (Request, error) {
	if len(fields) < 5 {
		return Request{}, fmt.Errorf("%s: malformed command line", fields[0])
	}

	flags, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Request{}, fmt.Errorf("%s: bad flags: %w", fields[0], err)
	}
	ttl, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Request{}, fmt.Errorf("%s: bad ttl: %w", fields[0], err)
	}
	nbytes, err := strconv.Atoi(fields[4])
	if err != nil || nbytes < 0 {
		return Request{}, fmt.Errorf("%s: bad byte count", fields[0])
	}
	noReply := len(fields) >= 6 && fields[5] == "noreply"

	payload := make([]byte, nbytes+2) // +2 for the trailing \r\n
	if _, err := io.ReadFull(r, payload); err != nil {
		return Request{}, fmt.Errorf("%s: short payload: %w", fields[0], err)
	}
	payload = payload[:nbytes]

	var setter SetterKind
	switch fields[0] {
	case "set":
		setter = Set
	case "add":
		setter = Add
	case "replace":
		setter = Replace
	case "append":
		setter = Append
	case "prepend":
		setter = Prepend
	}

	return Request{
		Kind:    KindSetter,
		Setter:  setter,
		Key:     []byte(fields[1]),
		Flags:   uint32(flags),
		TTL:     uint32(ttl),
		Bytes:   nbytes,
		Payload: payload,
		NoReply: noReply,
	}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
