package gridfs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/chirino/taskmate/internal/config"
	mongostore "github.com/chirino/taskmate/internal/plugin/store/mongo"
	registryupload "github.com/chirino/taskmate/internal/registry/upload"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// BucketName is the GridFS bucket uploads are written to.
const BucketName = "uploads"

func init() {
	registryupload.Register(registryupload.Plugin{
		Name:   "gridfs",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryupload.FileStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("gridfs upload store: missing config in context")
	}
	client, err := mongostore.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gridfs upload store: %w", err)
	}
	dbName := cfg.DBName
	if dbName == "" {
		dbName = "taskmate"
	}
	return New(client.Database(dbName)), nil
}

// BucketStore keeps uploaded files in a MongoDB GridFS bucket keyed by file name.
type BucketStore struct {
	bucket *mongo.GridFSBucket
}

// New returns a store over the uploads bucket of db.
func New(db *mongo.Database) *BucketStore {
	return &BucketStore{bucket: db.GridFSBucket(options.GridFSBucket().SetName(BucketName))}
}

type fileMetadata struct {
	ContentType string `bson:"contentType"`
	SHA256      string `bson:"sha256"`
}

type fileDoc struct {
	ID       bson.ObjectID `bson:"_id"`
	Length   int64         `bson:"length"`
	Metadata fileMetadata  `bson:"metadata"`
}

func (s *BucketStore) Store(ctx context.Context, name string, data io.Reader, maxSize int64, contentType string) (*registryupload.StoreResult, error) {
	if !registryupload.ValidName(name) {
		return nil, fmt.Errorf("gridfs upload store: invalid name %q", name)
	}
	hasher := sha256.New()
	if maxSize > 0 {
		data = io.LimitReader(data, maxSize+1)
	}
	counted := &countingReader{r: io.TeeReader(data, hasher)}

	id := bson.NewObjectID()
	stream, err := s.bucket.OpenUploadStreamWithID(ctx, id, name,
		options.GridFSUpload().SetMetadata(fileMetadata{ContentType: contentType}))
	if err != nil {
		return nil, fmt.Errorf("gridfs upload store: open upload: %w", err)
	}
	if _, err := io.Copy(stream, counted); err != nil {
		_ = stream.Abort()
		return nil, fmt.Errorf("gridfs upload store: upload: %w", err)
	}
	if maxSize > 0 && counted.n > maxSize {
		_ = stream.Abort()
		return nil, registryupload.ErrTooLarge
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("gridfs upload store: finish upload: %w", err)
	}
	sum := fmt.Sprintf("%x", hasher.Sum(nil))
	// GridFS has no digest of its own; record it beside the content type.
	if _, err := s.bucket.GetFilesCollection().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"metadata.sha256": sum}}); err != nil {
		return nil, fmt.Errorf("gridfs upload store: record digest: %w", err)
	}
	return &registryupload.StoreResult{Name: name, Size: counted.n, SHA256: sum}, nil
}

func (s *BucketStore) find(ctx context.Context, name string) (*fileDoc, error) {
	if !registryupload.ValidName(name) {
		return nil, registryupload.ErrNotFound
	}
	var doc fileDoc
	err := s.bucket.GetFilesCollection().FindOne(ctx, bson.M{"filename": name},
		options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, registryupload.ErrNotFound
		}
		return nil, fmt.Errorf("gridfs upload store: find: %w", err)
	}
	return &doc, nil
}

func (s *BucketStore) Open(ctx context.Context, name string) (io.ReadCloser, *registryupload.FileInfo, error) {
	doc, err := s.find(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	ds, err := s.bucket.OpenDownloadStream(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, nil, registryupload.ErrNotFound
		}
		return nil, nil, fmt.Errorf("gridfs upload store: open download: %w", err)
	}
	ct := doc.Metadata.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ds, &registryupload.FileInfo{Size: doc.Length, ContentType: ct}, nil
}

func (s *BucketStore) Delete(ctx context.Context, name string) error {
	doc, err := s.find(ctx, name)
	if err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return registryupload.ErrNotFound
		}
		return fmt.Errorf("gridfs upload store: delete: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
