package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/filestore"
	"github.com/schemata-db/schemata/internal/logger"
)

const (
	contentTypeYAML = "application/yaml"
	contentTypeXZ   = "application/x-xz"
)

// Publisher writes snapshot documents to an object store. Documents land at
// <schema>/<timestamp>-<id>.yaml, next to a <schema>/latest.txt marker that
// records the digest and key of the newest snapshot.
type Publisher struct {
	Store  filestore.Store
	Bucket string

	// Compress writes xz-compressed documents (key suffix .yaml.xz).
	Compress bool

	// SkipUnchanged consults the latest marker before uploading and keeps
	// the existing snapshot when the digest has not changed.
	SkipUnchanged bool

	// Logger may be nil.
	Logger *logger.Logger
}

// Publish uploads doc and updates the schema's latest marker. It returns the
// object key of the snapshot that now represents the schema: the freshly
// written one, or the existing one when SkipUnchanged found no change.
func (p *Publisher) Publish(ctx context.Context, doc *Document) (string, error) {
	if p.Store == nil {
		return "", errs.New(errs.ErrKindInvalidInput, "publisher has no store")
	}
	if p.Bucket == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "bucket name must not be empty")
	}
	if doc == nil {
		return "", errs.New(errs.ErrKindInvalidInput, "document must not be nil")
	}

	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With().Str("bucket", p.Bucket).Logger()

	if err := p.Store.EnsureBucket(ctx, p.Bucket); err != nil {
		return "", fmt.Errorf("ensuring bucket [%s]: %w", p.Bucket, err)
	}

	if p.SkipUnchanged {
		marker, err := p.readMarker(ctx, doc.SchemaName)
		if err != nil {
			return "", err
		}
		if marker != nil && marker.digest == doc.Digest {
			log.Debugf("schema [%s] unchanged, keeping snapshot [%s]", doc.SchemaName, marker.key)
			return marker.key, nil
		}
	}

	key := p.objectKey(doc)
	body, contentType, err := p.encode(doc)
	if err != nil {
		return "", err
	}

	opts := filestore.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"Snapshot-Digest": doc.Digest},
	}
	if _, err := p.Store.PutObject(ctx, p.Bucket, key, bytes.NewReader(body), int64(len(body)), opts); err != nil {
		return "", fmt.Errorf("publishing snapshot [%s]: %w", doc.ID, err)
	}

	if err := p.writeMarker(ctx, doc, key); err != nil {
		return "", err
	}

	log.Infof("published snapshot [%s] of schema [%s] to [%s]", doc.ID, doc.SchemaName, key)
	return key, nil
}

func (p *Publisher) objectKey(doc *Document) string {
	name := fmt.Sprintf("%s-%s.yaml", doc.CapturedAt.UTC().Format("20060102T150405Z"), doc.ID)
	if p.Compress {
		name += ".xz"
	}
	return path.Join(doc.SchemaName, name)
}

func (p *Publisher) encode(doc *Document) ([]byte, string, error) {
	var buf bytes.Buffer

	if !p.Compress {
		if err := doc.Encode(&buf); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), contentTypeYAML, nil
	}

	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, "", fmt.Errorf("compressing snapshot [%s]: %w", doc.ID, err)
	}
	if err := doc.Encode(xw); err != nil {
		return nil, "", err
	}
	if err := xw.Close(); err != nil {
		return nil, "", fmt.Errorf("compressing snapshot [%s]: %w", doc.ID, err)
	}
	return buf.Bytes(), contentTypeXZ, nil
}

// latestMarker is the parsed content of <schema>/latest.txt: one line
// holding digest and object key.
type latestMarker struct {
	digest string
	key    string
}

func markerKey(schemaName string) string {
	return path.Join(schemaName, "latest.txt")
}

// readMarker returns nil without error when no marker exists yet. A marker
// that does not parse is treated the same way, forcing a fresh upload.
func (p *Publisher) readMarker(ctx context.Context, schemaName string) (*latestMarker, error) {
	obj, err := p.Store.GetObject(ctx, p.Bucket, markerKey(schemaName))
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading latest marker for schema [%s]: %w", schemaName, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading latest marker for schema [%s]: %w", schemaName, err)
	}

	fields := strings.Fields(string(raw))
	if len(fields) != 2 {
		return nil, nil
	}
	return &latestMarker{digest: fields[0], key: fields[1]}, nil
}

func (p *Publisher) writeMarker(ctx context.Context, doc *Document, key string) error {
	content := fmt.Sprintf("%s %s\n", doc.Digest, key)
	opts := filestore.PutOptions{ContentType: "text/plain"}

	_, err := p.Store.PutObject(ctx, p.Bucket, markerKey(doc.SchemaName),
		strings.NewReader(content), int64(len(content)), opts)
	if err != nil {
		return fmt.Errorf("writing latest marker for schema [%s]: %w", doc.SchemaName, err)
	}
	return nil
}

// Fetch downloads and decodes the snapshot at key. Keys with the .xz suffix
// are decompressed transparently.
func Fetch(ctx context.Context, store filestore.Store, bucket, key string) (*Document, error) {
	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot [%s]: %w", key, err)
	}
	defer obj.Close()

	var r io.Reader = obj
	if strings.HasSuffix(key, ".xz") {
		xr, err := xz.NewReader(obj)
		if err != nil {
			return nil, fmt.Errorf("decompressing snapshot [%s]: %w", key, err)
		}
		r = xr
	}

	doc, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot [%s]: %w", key, err)
	}
	return doc, nil
}
