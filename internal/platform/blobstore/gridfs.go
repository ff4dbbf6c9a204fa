package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gridfsBucketName = "documentos"

// GridFSStore keeps blobs in a MongoDB GridFS bucket, using the key as the
// GridFS filename.
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

func NewGridFSStore(ctx context.Context, uri, database string) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(gridfsBucketName))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create gridfs bucket: %w", err)
	}
	return &GridFSStore{client: client, bucket: bucket}, nil
}

func (s *GridFSStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *GridFSStore) EnsureDir(_ context.Context, prefix string) error {
	_, err := CleanKey(prefix)
	return err
}

func (s *GridFSStore) Put(_ context.Context, key string, content io.Reader, contentType string) (int64, error) {
	key, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	counter := &countingReader{r: content}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	if _, err := s.bucket.UploadFromStream(key, counter, opts); err != nil {
		return 0, fmt.Errorf("gridfs upload %s: %w", key, err)
	}
	return counter.n, nil
}

func (s *GridFSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	stream, err := s.bucket.OpenDownloadStreamByName(key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gridfs open %s: %w", key, err)
	}
	return stream, nil
}

type gridfsFile struct {
	ID interface{} `bson:"_id"`
}

func (s *GridFSStore) deleteMatching(ctx context.Context, filter bson.M) (int, error) {
	cursor, err := s.bucket.Find(filter)
	if err != nil {
		return 0, fmt.Errorf("gridfs find: %w", err)
	}
	defer cursor.Close(ctx)

	var files []gridfsFile
	if err := cursor.All(ctx, &files); err != nil {
		return 0, fmt.Errorf("gridfs decode: %w", err)
	}
	for _, f := range files {
		if err := s.bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return 0, fmt.Errorf("gridfs delete: %w", err)
		}
	}
	return len(files), nil
}

func (s *GridFSStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	n, err := s.deleteMatching(ctx, bson.M{"filename": key})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBlobNotFound
	}
	return nil
}

func (s *GridFSStore) RemoveAll(ctx context.Context, prefix string) error {
	prefix, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	pattern := "^" + regexp.QuoteMeta(prefix+"/")
	_, err = s.deleteMatching(ctx, bson.M{"filename": bson.M{"$regex": pattern}})
	return err
}
