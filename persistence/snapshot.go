package persistence

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"mumpsdb/core"
	"mumpsdb/monitoring"
)

// Snapshot file layout: 4-byte magic, 1-byte codec, then the
// codec-compressed msgpack encoding of the global map. Subscript and value
// type tags and child order are preserved so the §3 data model round-trips
// exactly.
var snapshotMagic = []byte("MDB1")

const (
	codecNone byte = iota
	codecGzip
	codecSnappy
	codecLZ4
	codecZstd
)

var codecNames = map[string]byte{
	"none":   codecNone,
	"gzip":   codecGzip,
	"snappy": codecSnappy,
	"lz4":    codecLZ4,
	"zstd":   codecZstd,
}

// snapScalar is the tagged wire form of a value or subscript
type snapScalar struct {
	Kind  uint8   `msgpack:"k"`
	Int   int64   `msgpack:"i,omitempty"`
	Float float64 `msgpack:"f,omitempty"`
	Str   string  `msgpack:"s,omitempty"`
}

// snapNode is the wire form of a tree node; children are serialized in
// subscript order.
type snapNode struct {
	Value    snapScalar  `msgpack:"v"`
	Children []snapChild `msgpack:"c,omitempty"`
}

type snapChild struct {
	Key  snapScalar `msgpack:"k"`
	Node *snapNode  `msgpack:"n"`
}

// SnapshotService writes and restores the full-store snapshot
type SnapshotService struct {
	store   *core.Store
	path    string
	codec   string
	metrics *monitoring.Metrics
	log     *logrus.Entry
}

// NewSnapshotService creates a snapshot service for the store
func NewSnapshotService(store *core.Store, path, codec string, metrics *monitoring.Metrics, log *logrus.Entry) (*SnapshotService, error) {
	if _, ok := codecNames[codec]; !ok {
		return nil, fmt.Errorf("unknown snapshot compression: %s", codec)
	}
	return &SnapshotService{
		store:   store,
		path:    path,
		codec:   codec,
		metrics: metrics,
		log:     log,
	}, nil
}

// Save serializes the whole store and atomically replaces the snapshot
// file via a temp file and rename; a failed write leaves the previous
// snapshot intact.
func (s *SnapshotService) Save() error {
	globals := s.store.Export()

	encoded := make(map[string]*snapNode, len(globals))
	for name, root := range globals {
		encoded[name] = encodeNode(root)
	}

	payload, err := msgpack.Marshal(encoded)
	if err != nil {
		s.metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "failed to encode snapshot")
	}

	compressed, err := compress(s.codec, payload)
	if err != nil {
		s.metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "failed to compress snapshot")
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic)
	buf.WriteByte(codecNames[s.codec])
	buf.Write(compressed)

	if err := renameio.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		s.metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "failed to write snapshot file")
	}

	s.metrics.SnapshotSaves.Inc()
	s.log.WithFields(logrus.Fields{
		"file":    s.path,
		"globals": len(globals),
		"bytes":   buf.Len(),
	}).Info("snapshot saved")
	return nil
}

// Load reads the snapshot file, if present, and replaces the in-memory
// state. A missing file means a fresh start, not an error.
func (s *SnapshotService) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.WithField("file", s.path).Info("no snapshot found, starting empty")
			return nil
		}
		return errors.Wrap(err, "failed to read snapshot file")
	}

	if len(data) < len(snapshotMagic)+1 || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return errors.New("snapshot file has an invalid header")
	}
	codecByte := data[len(snapshotMagic)]
	payload, err := decompress(codecByte, data[len(snapshotMagic)+1:])
	if err != nil {
		return errors.Wrap(err, "failed to decompress snapshot")
	}

	var encoded map[string]*snapNode
	if err := msgpack.Unmarshal(payload, &encoded); err != nil {
		return errors.Wrap(err, "failed to decode snapshot")
	}

	globals := make(map[string]*core.TreeNode, len(encoded))
	for name, node := range encoded {
		globals[name] = decodeNode(node)
	}
	s.store.Restore(globals)

	s.log.WithFields(logrus.Fields{
		"file":    s.path,
		"globals": len(globals),
	}).Info("snapshot loaded")
	return nil
}

func encodeNode(n *core.TreeNode) *snapNode {
	out := &snapNode{Value: encodeValue(n.Data())}
	for _, sub := range n.ChildSubscripts() {
		out.Children = append(out.Children, snapChild{
			Key:  encodeSubscript(sub),
			Node: encodeNode(n.Child(sub)),
		})
	}
	return out
}

func decodeNode(sn *snapNode) *core.TreeNode {
	node := core.NewTreeNode()
	node.SetData(decodeValue(sn.Value))
	for _, child := range sn.Children {
		node.PutChild(decodeSubscript(child.Key), decodeNode(child.Node))
	}
	return node
}

func encodeValue(v core.Value) snapScalar {
	switch v.Kind() {
	case core.KindInt:
		return snapScalar{Kind: uint8(core.KindInt), Int: v.Int()}
	case core.KindFloat:
		return snapScalar{Kind: uint8(core.KindFloat), Float: v.Float()}
	case core.KindString:
		return snapScalar{Kind: uint8(core.KindString), Str: v.Str()}
	default:
		return snapScalar{Kind: uint8(core.KindNull)}
	}
}

func decodeValue(s snapScalar) core.Value {
	switch core.Kind(s.Kind) {
	case core.KindInt:
		return core.IntValue(s.Int)
	case core.KindFloat:
		return core.FloatValue(s.Float)
	case core.KindString:
		return core.StringValue(s.Str)
	default:
		return core.Null
	}
}

func encodeSubscript(s core.Subscript) snapScalar {
	switch s.Kind() {
	case core.KindInt:
		return snapScalar{Kind: uint8(core.KindInt), Int: s.Int()}
	case core.KindFloat:
		return snapScalar{Kind: uint8(core.KindFloat), Float: s.Float()}
	default:
		return snapScalar{Kind: uint8(core.KindString), Str: s.Str()}
	}
}

func decodeSubscript(s snapScalar) core.Subscript {
	switch core.Kind(s.Kind) {
	case core.KindInt:
		return core.IntSubscript(s.Int)
	case core.KindFloat:
		return core.FloatSubscript(s.Float)
	default:
		return core.StringSubscript(s.Str)
	}
}

func compress(codec string, data []byte) ([]byte, error) {
	switch codecNames[codec] {
	case codecNone:
		return data, nil
	case codecGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case codecSnappy:
		return snappy.Encode(nil, data), nil
	case codecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case codecZstd:
		zw, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer zw.Close()
		return zw.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", codec)
	}
}

func decompress(codec byte, data []byte) ([]byte, error) {
	switch codec {
	case codecNone:
		return data, nil
	case codecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case codecSnappy:
		return snappy.Decode(nil, data)
	case codecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	case codecZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unknown codec byte: %d", codec)
	}
}
