package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"practicelab/internal/common/storage"
	pkgerrors "practicelab/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

// Object reads <prefix>/<questionID>.json.zst or <prefix>/<questionID>.json
// from object storage.
type Object struct {
	store  storage.ObjectStorage
	bucket string
	prefix string
}

func NewObject(store storage.ObjectStorage, bucket, prefix string) (*Object, error) {
	if store == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Object{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// ObjectKey returns the plain key of a question's payload.
func (o *Object) ObjectKey(questionID string) string {
	return path.Join(o.prefix, questionID+".json")
}

func (o *Object) Fetch(ctx context.Context, questionID string) (any, error) {
	key := o.ObjectKey(questionID)
	for _, candidate := range []struct {
		key        string
		compressed bool
	}{
		{key + ".zst", true},
		{key, false},
	} {
		data, err := o.read(ctx, candidate.key, candidate.compressed)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.DatasetFetchFailed, "Reading dataset object %s failed", candidate.key)
		}
		v, err := decodePayload(data)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.DatasetDecodeFailed)
		}
		return v, nil
	}
	return nil, nil
}

func (o *Object) read(ctx context.Context, key string, compressed bool) ([]byte, error) {
	stat, err := o.store.StatObject(ctx, o.bucket, key)
	if err != nil {
		return nil, err
	}
	if stat.SizeBytes > maxPayloadBytes {
		return nil, fmt.Errorf("object is %d bytes, limit %d", stat.SizeBytes, maxPayloadBytes)
	}
	if strings.EqualFold(stat.ContentEncoding, "zstd") {
		compressed = true
	}

	obj, err := o.store.GetObject(ctx, o.bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	var r io.Reader = obj
	if compressed {
		dec, err := zstd.NewReader(obj)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader failed: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return readPayload(r)
}
