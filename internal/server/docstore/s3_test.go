package docstore

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map and pages listings two keys at a time.
type fakeS3 struct {
	objects map[string][]byte
	buckets map[string]bool

	putErr, getErr, delErr, listErr error
	headErr, createErr              error

	lastPut   *s3.PutObjectInput
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.lastPut = in
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.delErr != nil {
		return nil, f.delErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3Store_PutGetRoundTrip(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "lakeadmin")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, common.CollectionCredentials, "AK1", []byte(`{"uid":"alice"}`)))
	assert.Equal(t, "credentials/AK1", aws.ToString(api.lastPut.Key))
	assert.Equal(t, "lakeadmin", aws.ToString(api.lastPut.Bucket))
	assert.Equal(t, "application/json", aws.ToString(api.lastPut.ContentType))

	got, err := s.Get(ctx, common.CollectionCredentials, "AK1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"alice"}`, string(got))

	require.NoError(t, s.Put(ctx, common.CollectionCredentials, "AK1", []byte(`{"uid":"bob"}`)))
	got, err = s.Get(ctx, common.CollectionCredentials, "AK1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"bob"}`, string(got), "last writer wins")
}

func TestS3Store_GetMissingIsNotFound(t *testing.T) {
	s := NewS3StoreWithClient(newFakeS3(), "b")

	_, err := s.Get(context.Background(), common.CollectionConfiguration, "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestS3Store_ErrorClassification(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "b")
	ctx := context.Background()

	api.getErr = errors.New("connection refused")
	_, err := s.Get(ctx, common.CollectionConfiguration, "x")
	require.ErrorIs(t, err, common.ErrorBackend)
	require.NotErrorIs(t, err, common.ErrorNotFound)

	api.putErr = context.DeadlineExceeded
	err = s.Put(ctx, common.CollectionConfiguration, "x", []byte(`{}`))
	require.ErrorIs(t, err, common.ErrorBackendTimeout)

	api.listErr = errors.New("503")
	_, err = s.List(ctx, common.CollectionConfiguration)
	require.ErrorIs(t, err, common.ErrorBackend)
}

func TestS3Store_ListPagesAndScopesByCollection(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "b")
	ctx := context.Background()

	for _, k := range []string{"j3", "j1", "j2", "j5", "j4"} {
		require.NoError(t, s.Put(ctx, common.CollectionArchiveJobs, k, []byte(`{}`)))
	}
	require.NoError(t, s.Put(ctx, common.CollectionConfiguration, "da-1", []byte(`{}`)))

	keys, err := s.List(ctx, common.CollectionArchiveJobs)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2", "j3", "j4", "j5"}, keys)
	assert.Equal(t, 3, api.listCalls)
}

func TestS3Store_DeleteIsIdempotent(t *testing.T) {
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "b")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, common.CollectionCredentials, "AK1", []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, common.CollectionCredentials, "AK1"))
	require.NoError(t, s.Delete(ctx, common.CollectionCredentials, "AK1"))

	_, err := s.Get(ctx, common.CollectionCredentials, "AK1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	api.delErr = &types.NoSuchKey{}
	require.NoError(t, s.Delete(ctx, common.CollectionCredentials, "AK1"))

	api.delErr = errors.New("boom")
	require.ErrorIs(t, s.Delete(ctx, common.CollectionCredentials, "AK1"), common.ErrorBackend)
}

func TestS3Store_Validation(t *testing.T) {
	s := NewS3StoreWithClient(newFakeS3(), "b")
	ctx := context.Background()

	require.ErrorIs(t, s.Put(ctx, "users", "k", nil), common.ErrorValidation)
	require.ErrorIs(t, s.Put(ctx, common.CollectionConfiguration, "", nil), common.ErrorValidation)
	require.ErrorIs(t, s.Put(ctx, common.CollectionConfiguration, "a/b", nil), common.ErrorValidation)
	_, err := s.List(ctx, "nope")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestS3Store_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing bucket", func(t *testing.T) {
		api := newFakeS3()
		require.NoError(t, NewS3StoreWithClient(api, "lakeadmin").EnsureBucket(ctx))
		assert.True(t, api.buckets["lakeadmin"])
	})

	t.Run("existing bucket is left alone", func(t *testing.T) {
		api := newFakeS3()
		api.buckets["lakeadmin"] = true
		api.createErr = errors.New("must not be called")
		require.NoError(t, NewS3StoreWithClient(api, "lakeadmin").EnsureBucket(ctx))
	})

	t.Run("already owned is success", func(t *testing.T) {
		api := newFakeS3()
		api.createErr = &types.BucketAlreadyOwnedByYou{}
		require.NoError(t, NewS3StoreWithClient(api, "lakeadmin").EnsureBucket(ctx))
	})

	t.Run("head failure is backend error", func(t *testing.T) {
		api := newFakeS3()
		api.headErr = errors.New("forbidden")
		require.ErrorIs(t, NewS3StoreWithClient(api, "lakeadmin").EnsureBucket(ctx), common.ErrorBackend)
	})
}

func TestNewS3Store_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ak", creds.AccessKeyID)
		assert.Equal(t, "sk", creds.SecretAccessKey)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	s, err := NewS3Store(context.Background(), S3Options{
		Endpoint: "http://rgw:7480", Region: "us-east-1",
		AccessKey: "ak", SecretKey: "sk", Bucket: "lakeadmin",
	})
	require.NoError(t, err)
	assert.Equal(t, "lakeadmin", s.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://rgw:7480", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no region")
	}

	_, err := NewS3Store(context.Background(), S3Options{})
	require.ErrorContains(t, err, "no region")
}

func TestS3Store_Ping(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	s := NewS3StoreWithClient(api, "lakeadmin")

	require.ErrorIs(t, s.Ping(ctx), common.ErrorBackend, "missing bucket")

	api.buckets["lakeadmin"] = true
	require.NoError(t, s.Ping(ctx))

	api.headErr = context.DeadlineExceeded
	require.ErrorIs(t, s.Ping(ctx), common.ErrorBackendTimeout)
}
