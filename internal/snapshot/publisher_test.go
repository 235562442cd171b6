package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/filestore"
	"github.com/schemata-db/schemata/internal/schema"
)

type fakeStore struct {
	buckets map[string]map[string][]byte
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]map[string][]byte{}}
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) EnsureBucket(_ context.Context, bucket string) error {
	if _, ok := f.buckets[bucket]; !ok {
		f.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, body io.Reader, _ int64, _ filestore.PutOptions) (*filestore.ObjectInfo, error) {
	objects, ok := f.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("no such bucket [%s]", bucket))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	objects[key] = data
	f.puts++
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStore) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	var out []filestore.ObjectInfo
	for key, data := range f.buckets[bucket] {
		if strings.HasPrefix(key, opts.Prefix) {
			out = append(out, filestore.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	data, ok := f.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("no object at [%s]", key))
	}
	return &fakeObject{
		Reader: bytes.NewReader(data),
		info:   &filestore.ObjectInfo{Key: key, Size: int64(len(data))},
	}, nil
}

func (f *fakeStore) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	data, ok := f.buckets[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("no object at [%s]", key))
	}
	return &filestore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStore) PresignGetURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://store.test/%s/%s", bucket, key), nil
}

type fakeObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (o *fakeObject) Close() error                { return nil }
func (o *fakeObject) Info() *filestore.ObjectInfo { return o.info }

func TestPublisher_WritesDocumentAndMarker(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &Publisher{Store: store, Bucket: "snapshots"}

	doc, err := Capture(ctx, "hr", personSchema())
	require.NoError(t, err)

	key, err := pub.Publish(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "hr/"))
	assert.True(t, strings.HasSuffix(key, ".yaml"))

	marker := store.buckets["snapshots"]["hr/latest.txt"]
	assert.Equal(t, fmt.Sprintf("%s %s\n", doc.Digest, key), string(marker))

	got, err := Fetch(ctx, store, "snapshots", key)
	require.NoError(t, err)
	assert.Equal(t, doc.Digest, got.Digest)
	assert.Equal(t, doc.Tables, got.Tables)
}

func TestPublisher_SkipUnchangedKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &Publisher{Store: store, Bucket: "snapshots", SkipUnchanged: true}

	first, err := Capture(ctx, "hr", personSchema())
	require.NoError(t, err)
	firstKey, err := pub.Publish(ctx, first)
	require.NoError(t, err)
	require.Equal(t, 2, store.puts)

	second, err := Capture(ctx, "hr", personSchema())
	require.NoError(t, err)
	secondKey, err := pub.Publish(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, firstKey, secondKey)
	assert.Equal(t, 2, store.puts)
}

func TestPublisher_SkipUnchangedUploadsOnChange(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &Publisher{Store: store, Bucket: "snapshots", SkipUnchanged: true}

	first, err := Capture(ctx, "hr", personSchema())
	require.NoError(t, err)
	firstKey, err := pub.Publish(ctx, first)
	require.NoError(t, err)

	changed := personSchema()
	person := changed.tables[0].(*testTable)
	person.columns = append(person.columns, schema.Column{
		Name: "email", Type: schema.DataTypeString, Width: 255, Nullable: true,
	})
	second, err := Capture(ctx, "hr", changed)
	require.NoError(t, err)

	secondKey, err := pub.Publish(ctx, second)
	require.NoError(t, err)

	assert.NotEqual(t, firstKey, secondKey)
	assert.Equal(t, 4, store.puts)

	marker := store.buckets["snapshots"]["hr/latest.txt"]
	assert.Equal(t, fmt.Sprintf("%s %s\n", second.Digest, secondKey), string(marker))
}

func TestPublisher_CompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pub := &Publisher{Store: store, Bucket: "snapshots", Compress: true}

	doc, err := Capture(ctx, "hr", personSchema())
	require.NoError(t, err)

	key, err := pub.Publish(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".yaml.xz"))

	got, err := Fetch(ctx, store, "snapshots", key)
	require.NoError(t, err)
	assert.Equal(t, doc.Digest, got.Digest)
	assert.Equal(t, doc.Tables, got.Tables)
	assert.Equal(t, doc.Views, got.Views)
}

func TestPublisher_Validation(t *testing.T) {
	ctx := context.Background()
	doc := &Document{SchemaName: "hr"}

	_, err := (&Publisher{Bucket: "snapshots"}).Publish(ctx, doc)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = (&Publisher{Store: newFakeStore()}).Publish(ctx, doc)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = (&Publisher{Store: newFakeStore(), Bucket: "snapshots"}).Publish(ctx, nil)
	assert.True(t, errs.IsInvalidInput(err))
}
